package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackPost(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	require.NoError(t, NewSlack(server.URL).Post(context.Background(), "2 repositories need attention"))
	assert.Equal(t, map[string]string{"text": "2 repositories need attention"}, got)
}

func TestSlackPost_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer server.Close()

	err := NewSlack(server.URL).Post(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TEST_SLACK_WEBHOOK", "")
	assert.Nil(t, FromEnv("TEST_SLACK_WEBHOOK"))
	assert.Nil(t, FromEnv(""))

	t.Setenv("TEST_SLACK_WEBHOOK", "https://hooks.slack.com/services/x")
	s := FromEnv("TEST_SLACK_WEBHOOK")
	require.NotNil(t, s)
	assert.Equal(t, "https://hooks.slack.com/services/x", s.webhookURL)
}
