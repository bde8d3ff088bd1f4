package grievanceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) locationList(ctx context.Context, kind string, query url.Values, out any) error {
	raw, err := c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/location/" + kind,
		path:   "/location/" + kind,
		query:  query,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// Districts lists every district.
func (c *Client) Districts(ctx context.Context) ([]District, error) {
	districts := []District{}
	if err := c.locationList(ctx, "districts", nil, &districts); err != nil {
		return nil, err
	}
	return districts, nil
}

// Municipalities lists municipalities, restricted to districtID when it is positive.
func (c *Client) Municipalities(ctx context.Context, districtID int) ([]Municipality, error) {
	query := url.Values{}
	if districtID > 0 {
		query.Set("district_id", strconv.Itoa(districtID))
	}
	municipalities := []Municipality{}
	if err := c.locationList(ctx, "municipalities", query, &municipalities); err != nil {
		return nil, err
	}
	return municipalities, nil
}

// Wards lists the wards of one municipality.
func (c *Client) Wards(ctx context.Context, municipalityID int) ([]Ward, error) {
	query := url.Values{}
	if municipalityID > 0 {
		query.Set("municipality_id", strconv.Itoa(municipalityID))
	}
	wards := []Ward{}
	if err := c.locationList(ctx, "wards", query, &wards); err != nil {
		return nil, err
	}
	return wards, nil
}
