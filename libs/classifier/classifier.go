// Package classifier calls the hosted urgency and department models.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultUrgencyURL    = "https://sambodhan-urgency-classifier-space.hf.space/predict_urgency"
	DefaultDepartmentURL = "https://sambodhan-department-classifier-space.hf.space/predict"
	DefaultTimeout       = 20 * time.Second
)

// ErrEmptyLabel is returned when a model answers without a label.
var ErrEmptyLabel = errors.New("classifier returned no label")

// Prediction is one model answer.
type Prediction struct {
	Label      string
	Confidence float64
}

// Classifier labels complaint text.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Prediction, error)
}

// HTTPClassifier posts {"text": ...} to a prediction endpoint. LabelKeys are
// tried in order against the response object.
type HTTPClassifier struct {
	Endpoint  string
	LabelKeys []string
	Client    *http.Client
}

// NewUrgency returns the urgency model client.
func NewUrgency(endpoint string, client *http.Client) *HTTPClassifier {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultUrgencyURL
	}
	return &HTTPClassifier{Endpoint: endpoint, LabelKeys: []string{"label", "urgency"}, Client: client}
}

// NewDepartment returns the department model client.
func NewDepartment(endpoint string, client *http.Client) *HTTPClassifier {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultDepartmentURL
	}
	return &HTTPClassifier{Endpoint: endpoint, LabelKeys: []string{"department", "label"}, Client: client}
}

func (c *HTTPClassifier) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (*Prediction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("classifier input is empty")
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("classifier error (%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var data map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	prediction := &Prediction{}
	for _, key := range c.LabelKeys {
		var label string
		if raw, ok := data[key]; ok && json.Unmarshal(raw, &label) == nil && strings.TrimSpace(label) != "" {
			prediction.Label = strings.TrimSpace(label)
			break
		}
	}
	if raw, ok := data["confidence"]; ok {
		_ = json.Unmarshal(raw, &prediction.Confidence)
	}
	if prediction.Label == "" {
		return nil, ErrEmptyLabel
	}
	return prediction, nil
}

// StaticClassifier always answers with Label. Used when a model is disabled.
type StaticClassifier struct {
	Label string
}

func (s StaticClassifier) Classify(ctx context.Context, text string) (*Prediction, error) {
	if s.Label == "" {
		return nil, ErrEmptyLabel
	}
	return &Prediction{Label: s.Label}, nil
}
