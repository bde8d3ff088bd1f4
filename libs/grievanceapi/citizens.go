package grievanceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CitizenLogin authenticates a citizen. A response with success=false is
// returned as a 401 Error carrying the backend message.
func (c *Client) CitizenLogin(ctx context.Context, email, password string) (*CitizenAuth, error) {
	return c.citizenAuth(ctx, "/chatbot/auth/login", map[string]string{"email": email, "password": password})
}

// CitizenSignup registers a citizen and signs them in.
func (c *Client) CitizenSignup(ctx context.Context, signup CitizenSignup) (*CitizenAuth, error) {
	return c.citizenAuth(ctx, "/chatbot/auth/signup", signup)
}

func (c *Client) citizenAuth(ctx context.Context, path string, body any) (*CitizenAuth, error) {
	var auth CitizenAuth
	in := call{method: http.MethodPost, route: path, path: path, body: body}
	if err := c.do(ctx, in, &auth); err != nil {
		return nil, err
	}
	if !auth.Success || auth.Token == "" || auth.User == nil {
		return nil, &Error{Status: http.StatusUnauthorized, Detail: auth.Message, Method: in.method, Route: in.route}
	}
	return &auth, nil
}

// CitizenMe loads the citizen identified by the bearer token in ctx.
func (c *Client) CitizenMe(ctx context.Context) (*Citizen, error) {
	raw, err := c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/chatbot/auth/me",
		path:   "/chatbot/auth/me",
	})
	if err != nil {
		return nil, err
	}
	var citizen Citizen
	if err := json.Unmarshal(unwrap(raw, "user", "data"), &citizen); err != nil {
		return nil, fmt.Errorf("decode citizen: %w", err)
	}
	return &citizen, nil
}

// CitizenComplaints lists the complaints filed by the citizen in ctx.
func (c *Client) CitizenComplaints(ctx context.Context) ([]Complaint, error) {
	raw, err := c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/chatbot/auth/complaints",
		path:   "/chatbot/auth/complaints",
	})
	if err != nil {
		return nil, err
	}
	return decodeComplaints(raw)
}

// ChatbotMessage forwards one chat turn.
func (c *Client) ChatbotMessage(ctx context.Context, msg ChatMessage) (*ChatReply, error) {
	var reply ChatReply
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/chatbot/message",
		path:   "/chatbot/message",
		body:   msg,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}
