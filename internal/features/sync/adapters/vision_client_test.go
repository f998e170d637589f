package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evidence-capture/internal/features/sync/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVisionClient_Extract_Success verifies a confident extraction maps cleanly.
func TestVisionClient_Extract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer vk_test", r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"In Transit","location":"Louisville, KY","eta":"2026-09-02","confidence":0.93}`))
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "vk_test", 5*time.Second, 0.6)

	extraction, err := client.Extract(context.Background(), []byte("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "In Transit", extraction.Status)
	assert.Equal(t, "Louisville, KY", extraction.Location)
	assert.Equal(t, "2026-09-02", extraction.ETA)
	assert.False(t, extraction.LowConfidence)
	assert.Contains(t, extraction.RawJSON, `"confidence":0.93`)
}

// TestVisionClient_Extract_LowConfidence verifies the soft-failure flag.
func TestVisionClient_Extract_LowConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"In Transit","location":"","eta":"","confidence":0.31}`))
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "vk_test", 5*time.Second, 0.6)

	extraction, err := client.Extract(context.Background(), []byte("png-bytes"))

	require.NoError(t, err)
	assert.True(t, extraction.LowConfidence)
	assert.True(t, strings.HasPrefix(extraction.RawJSON, `{"low_confidence":true`))
	assert.Contains(t, extraction.RawJSON, `"confidence":0.31`)
}

// TestVisionClient_Extract_ServerError verifies 5xx classifies as retryable model_error.
func TestVisionClient_Extract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "vk_test", 5*time.Second, 0.6)

	_, err := client.Extract(context.Background(), []byte("png-bytes"))

	require.Error(t, err)
	attemptErr, ok := domain.ClassifyAttemptError(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureModelError, attemptErr.Kind)
	assert.True(t, attemptErr.Kind.Retryable())
}

// TestVisionClient_Extract_MalformedBody verifies unparseable payloads are terminal.
func TestVisionClient_Extract_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "vk_test", 5*time.Second, 0.6)

	_, err := client.Extract(context.Background(), []byte("png-bytes"))

	require.Error(t, err)
	attemptErr, ok := domain.ClassifyAttemptError(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureMalformedResponse, attemptErr.Kind)
	assert.False(t, attemptErr.Kind.Retryable())
}

// TestVisionClient_Extract_MissingStatus verifies a parseable but empty payload is malformed.
func TestVisionClient_Extract_MissingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"location":"Louisville, KY","confidence":0.9}`))
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "vk_test", 5*time.Second, 0.6)

	_, err := client.Extract(context.Background(), []byte("png-bytes"))

	require.Error(t, err)
	attemptErr, ok := domain.ClassifyAttemptError(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureMalformedResponse, attemptErr.Kind)
}

// TestVisionClient_Extract_Unreachable verifies transport failures classify as model_error.
func TestVisionClient_Extract_Unreachable(t *testing.T) {
	client := NewVisionClient("http://127.0.0.1:1", "vk_test", 1*time.Second, 0.6)

	_, err := client.Extract(context.Background(), []byte("png-bytes"))

	require.Error(t, err)
	attemptErr, ok := domain.ClassifyAttemptError(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureModelError, attemptErr.Kind)
}
