package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelServer(t *testing.T, status int, response string, gotText *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if gotText != nil {
			*gotText = body["text"]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestUrgencyClassifierReadsLabel(t *testing.T) {
	var sent string
	server := modelServer(t, http.StatusOK, `{"label": "URGENT", "confidence": 0.91}`, &sent)

	prediction, err := NewUrgency(server.URL, server.Client()).Classify(context.Background(), "  water pipe burst  ")
	require.NoError(t, err)
	assert.Equal(t, "water pipe burst", sent)
	assert.Equal(t, "URGENT", prediction.Label)
	assert.InDelta(t, 0.91, prediction.Confidence, 1e-9)
}

func TestDepartmentClassifierPrefersDepartmentKey(t *testing.T) {
	server := modelServer(t, http.StatusOK, `{"department": "Security & Law Enforcement", "label": "ignored"}`, nil)

	prediction, err := NewDepartment(server.URL, server.Client()).Classify(context.Background(), "theft near school")
	require.NoError(t, err)
	assert.Equal(t, "Security & Law Enforcement", prediction.Label)
}

func TestDepartmentClassifierFallsBackToLabel(t *testing.T) {
	server := modelServer(t, http.StatusOK, `{"department": "", "label": "Education, Health & Social Welfare"}`, nil)

	prediction, err := NewDepartment(server.URL, server.Client()).Classify(context.Background(), "clinic closed")
	require.NoError(t, err)
	assert.Equal(t, "Education, Health & Social Welfare", prediction.Label)
}

func TestEmptyLabelIsAnError(t *testing.T) {
	server := modelServer(t, http.StatusOK, `{"label": ""}`, nil)

	_, err := NewUrgency(server.URL, server.Client()).Classify(context.Background(), "pothole")
	assert.ErrorIs(t, err, ErrEmptyLabel)
}

func TestUpstreamErrorCarriesStatus(t *testing.T) {
	server := modelServer(t, http.StatusServiceUnavailable, `model loading`, nil)

	_, err := NewUrgency(server.URL, server.Client()).Classify(context.Background(), "pothole")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model loading")
}

func TestEmptyInputSkipsCall(t *testing.T) {
	_, err := NewUrgency("http://127.0.0.1:1", nil).Classify(context.Background(), "   ")
	assert.Error(t, err)
}

func TestDefaultsWhenEndpointBlank(t *testing.T) {
	assert.Equal(t, DefaultUrgencyURL, NewUrgency("", nil).Endpoint)
	assert.Equal(t, DefaultDepartmentURL, NewDepartment(" ", nil).Endpoint)
}

func TestStaticClassifier(t *testing.T) {
	prediction, err := StaticClassifier{Label: "NORMAL"}.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "NORMAL", prediction.Label)

	_, err = StaticClassifier{}.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyLabel)
}
