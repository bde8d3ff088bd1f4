package grievanceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListComplaints lists complaints visible under filter.
func (c *Client) ListComplaints(ctx context.Context, filter url.Values) ([]Complaint, error) {
	raw, err := c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/complaints",
		path:   "/complaints",
		query:  filter,
	})
	if err != nil {
		return nil, err
	}
	return decodeComplaints(raw)
}

func decodeComplaints(raw json.RawMessage) ([]Complaint, error) {
	payload := unwrap(raw, "data", "complaints")
	complaints := []Complaint{}
	if err := json.Unmarshal(payload, &complaints); err != nil {
		return nil, fmt.Errorf("decode complaints: %w", err)
	}
	return complaints, nil
}

// StatusUpdate is the result of UpdateComplaintStatus. Complaint is nil when
// the backend answered without a body.
type StatusUpdate struct {
	Sent      Status
	Complaint *Complaint
}

// Current is the status the backend echoed, or the one that was sent when the
// backend did not echo one.
func (u StatusUpdate) Current() Status {
	if u.Complaint != nil && u.Complaint.CurrentStatus.Valid() {
		return u.Complaint.CurrentStatus
	}
	return u.Sent
}

// UpdateComplaintStatus patches current_status with the integer code.
func (c *Client) UpdateComplaintStatus(ctx context.Context, id int, status Status) (StatusUpdate, error) {
	if !status.Valid() {
		return StatusUpdate{}, fmt.Errorf("invalid status code %d", int(status))
	}
	raw, err := c.raw(ctx, call{
		method: http.MethodPatch,
		route:  "/complaints/{id}",
		path:   "/complaints/" + strconv.Itoa(id),
		body:   map[string]int{"current_status": int(status)},
	})
	if err != nil {
		return StatusUpdate{}, err
	}
	update := StatusUpdate{Sent: status}
	if payload := unwrapData(raw); shapeOf(payload) == shapeMapping {
		var complaint Complaint
		if err := json.Unmarshal(payload, &complaint); err == nil && bytes.Contains(payload, []byte(`"current_status"`)) {
			update.Complaint = &complaint
		}
	}
	return update, nil
}

// CreateComplaint files a new complaint.
func (c *Client) CreateComplaint(ctx context.Context, complaint NewComplaint) (*Complaint, error) {
	var created Complaint
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/complaints",
		path:   "/complaints",
		body:   complaint,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListMisclassifications lists correction reports matching filter
// (reviewed, department).
func (c *Client) ListMisclassifications(ctx context.Context, filter url.Values) ([]Misclassification, error) {
	raw, err := c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/misclassifications",
		path:   "/misclassifications",
		query:  filter,
	})
	if err != nil {
		return nil, err
	}
	reports := []Misclassification{}
	if err := json.Unmarshal(unwrapData(raw), &reports); err != nil {
		return nil, fmt.Errorf("decode misclassifications: %w", err)
	}
	return reports, nil
}

// ReportMisclassification files a correction on behalf of adminID.
func (c *Client) ReportMisclassification(ctx context.Context, adminID int, report MisclassificationReport) (*Misclassification, error) {
	var created Misclassification
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/misclassifications",
		path:   "/misclassifications",
		query:  url.Values{"reported_by_admin_id": {strconv.Itoa(adminID)}},
		body:   report,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteMisclassification withdraws a correction report.
func (c *Client) DeleteMisclassification(ctx context.Context, id, adminID int) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		route:  "/misclassifications/{id}",
		path:   "/misclassifications/" + strconv.Itoa(id),
		query:  url.Values{"reported_by_admin_id": {strconv.Itoa(adminID)}},
	}, nil)
}
