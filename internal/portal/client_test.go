package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bureauhq/bureau/internal/log"
)

func TestFetchSendsCredentials(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-API-Key")
		w.Write([]byte(`{"leave_balance": 12}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "secret-key", log.NewNop())
	require.NoError(t, err)

	body, err := client.Fetch(context.Background(), "u-42", "leave", "session-token")
	require.NoError(t, err)
	assert.Equal(t, `{"leave_balance": 12}`, body)
	assert.Equal(t, "/api/user/u-42/leave", gotPath)
	assert.Equal(t, "Bearer session-token", gotAuth)
	assert.Equal(t, "secret-key", gotKey)
}

func TestFetchRequiresToken(t *testing.T) {
	client, err := New("http://portal.local", "key", log.NewNop())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "u-42", "leave", "")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
}

func TestFetchRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := New(server.URL, "key", log.NewNop())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "u-42", "leave", "expired")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(server.URL, "key", log.NewNop())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "u-42", "payroll", "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchUnreachablePortal(t *testing.T) {
	client, err := New("http://127.0.0.1:1", "key", log.NewNop())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "u-42", "leave", "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewValidation(t *testing.T) {
	_, err := New("", "key", log.NewNop())
	assert.Error(t, err)

	_, err = New("http://portal.local", "", log.NewNop())
	assert.Error(t, err)
}
