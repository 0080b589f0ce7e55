package routers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"scriptcollab/internal/config"
	"scriptcollab/internal/session"
)

func newTestRouter(t *testing.T, internalKey string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Port:            "0",
		JWTSecret:       []byte("router-secret"),
		AllowedOrigins:  []string{"*"},
		InternalAPIKey:  internalKey,
		SendBuffer:      8,
		PingInterval:    time.Second,
		PongWait:        5 * time.Second,
		WriteWait:       time.Second,
		MaxMessageBytes: 1 << 16,
	}
	server := httptest.NewServer(New(zap.NewNop(), cfg, session.NewHub(nil)))
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method, url, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewRouterHealthEndpoint(t *testing.T) {
	server := newTestRouter(t, "")

	resp := do(t, http.MethodGet, server.URL+"/api/v1/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStatsAndMetricsAreOpen(t *testing.T) {
	server := newTestRouter(t, "")

	for _, path := range []string{"/api/v1/stats", "/metrics"} {
		if resp := do(t, http.MethodGet, server.URL+path, "", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestCollaboratorsRequiresAuth(t *testing.T) {
	server := newTestRouter(t, "")
	url := server.URL + "/api/v1/scripts/12/collaborators"

	if resp := do(t, http.MethodGet, url, "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "1"}).SignedString([]byte("router-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	resp := do(t, http.MethodGet, url, "", http.Header{"Authorization": {"Bearer " + tok}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestBroadcastRequiresInternalKey(t *testing.T) {
	server := newTestRouter(t, "internal")
	url := server.URL + "/api/v1/internal/scripts/12/broadcast"
	body := `{"type":"script-updated"}`

	if resp := do(t, http.MethodPost, url, body, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without key, got %d", resp.StatusCode)
	}
	resp := do(t, http.MethodPost, url, body, http.Header{"X-Internal-Key": {"internal"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", resp.StatusCode)
	}
}

func TestWebSocketRouteRejectsAnonymous(t *testing.T) {
	server := newTestRouter(t, "")

	if resp := do(t, http.MethodGet, server.URL+"/ws", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
