package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// visit follows the consent URL the way the browser redirect would.
func visit(t *testing.T, port int, query func(state string) url.Values) func(string) {
	return func(consent string) {
		u, err := url.Parse(consent)
		require.NoError(t, err)
		go func() {
			callback := url.URL{Scheme: "http", Host: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), Path: "/callback"}
			callback.RawQuery = query(u.Query().Get("state")).Encode()
			resp, err := http.Get(callback.String())
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
}

func TestAuthorizeExchangesCode(t *testing.T) {
	port := freePort(t)
	cfg := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "shh",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: tokenServer(t).URL},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tok, err := authorize(ctx, cfg, port, visit(t, port, func(state string) url.Values {
		return url.Values{"code": {"the-code"}, "state": {state}}
	}))
	require.NoError(t, err)
	assert.Equal(t, "rt", tok.RefreshToken)
}

func TestAuthorizeRejectsForeignState(t *testing.T) {
	port := freePort(t)
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: "http://127.0.0.1:1"}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := authorize(ctx, cfg, port, visit(t, port, func(string) url.Values {
		return url.Values{"code": {"the-code"}, "state": {"forged"}}
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestAuthorizeTimesOut(t *testing.T) {
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example/auth"}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := authorize(ctx, cfg, freePort(t), func(string) {})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
