package grievanceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// GetAdmin loads one administrator by id.
func (c *Client) GetAdmin(ctx context.Context, id int) (*Admin, error) {
	raw, err := c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/admins/{id}",
		path:   "/admins/" + strconv.Itoa(id),
	})
	if err != nil {
		return nil, err
	}
	var admin Admin
	if err := json.Unmarshal(unwrapData(raw), &admin); err != nil {
		return nil, fmt.Errorf("decode admin: %w", err)
	}
	return &admin, nil
}

// LoginAdmin exchanges credentials for an access token and the admin record.
func (c *Client) LoginAdmin(ctx context.Context, email, password string) (*AdminLogin, error) {
	var login AdminLogin
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/admins/login",
		path:   "/admins/login",
		body:   map[string]string{"email": email, "password": password},
	}, &login)
	if err != nil {
		return nil, err
	}
	return &login, nil
}

// RegisterAdmin creates an administrator account.
func (c *Client) RegisterAdmin(ctx context.Context, reg AdminRegistration) (*Admin, error) {
	var admin Admin
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/admins/register",
		path:   "/admins/register",
		body:   reg,
	}, &admin)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// ListAdmins lists administrators matching filter (district_id,
// municipality_id, role).
func (c *Client) ListAdmins(ctx context.Context, filter url.Values) ([]Admin, error) {
	raw, err := c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/admins",
		path:   "/admins",
		query:  filter,
	})
	if err != nil {
		return nil, err
	}
	admins := []Admin{}
	if err := json.Unmarshal(unwrapData(raw), &admins); err != nil {
		return nil, fmt.Errorf("decode admins: %w", err)
	}
	return admins, nil
}
