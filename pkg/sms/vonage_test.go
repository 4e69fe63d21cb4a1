package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dont-forgetter-api/pkg/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.SMSConfig{
		APIKey:     "key",
		APISecret:  "secret",
		GatewayURL: url,
		SenderName: "dont-forgetter",
	}, nil, nil)
}

func TestSendAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.PostForm.Get("api_key"))
		assert.Equal(t, "secret", r.PostForm.Get("api_secret"))
		assert.Equal(t, "dont-forgetter", r.PostForm.Get("from"))
		assert.Equal(t, "48123456789", r.PostForm.Get("to"))
		assert.Equal(t, "Time for Gym!", r.PostForm.Get("text"))
		_, _ = w.Write([]byte(`{"message-count":"1","messages":[{"status":"0"}]}`))
	}))
	defer srv.Close()

	ok, err := newTestClient(srv.URL).Send(context.Background(), "", "48123456789", "Time for Gym!")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[{"status":"4","error-text":"Bad Credentials"}]}`))
	}))
	defer srv.Close()

	ok, err := newTestClient(srv.URL).Send(context.Background(), "me", "48123456789", "hi")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	ok, err := newTestClient(srv.URL).Send(context.Background(), "me", "1", "hi")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), "me", "1", "hi")
	assert.Error(t, err)
}

func TestSendMissingCredentials(t *testing.T) {
	client := NewClient(config.SMSConfig{GatewayURL: "http://unused"}, nil, nil)
	_, err := client.Send(context.Background(), "me", "1", "hi")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
