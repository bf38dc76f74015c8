package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/loykin/vigil/internal/service"
	"github.com/loykin/vigil/internal/store"
	"github.com/loykin/vigil/internal/supervisor"
)

func newTestServer(t *testing.T) (*httptest.Server, *supervisor.Supervisor) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh on Unix-like systems")
	}
	st, err := store.New(store.Config{Type: "file", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	sup := supervisor.New(supervisor.Options{
		Store: st,
		Policy: supervisor.RestartPolicy{
			CheckInterval: 50 * time.Millisecond,
			ProbeTimeout:  20 * time.Millisecond,
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	if err := sup.Add(ctx, service.Spec{Name: "web", HealthCommand: "true", RestartCmd: "true"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	srv := httptest.NewServer(NewRouter(sup, "/api").Handler())
	t.Cleanup(func() {
		srv.Close()
		sup.Shutdown()
		cancel()
		_ = st.Close()
	})
	return srv, sup
}

func TestStatusEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var all []service.Status
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != 1 || all[0].Name != "web" {
		t.Fatalf("unexpected statuses: %+v", all)
	}

	resp2, err := http.Get(srv.URL + "/api/status?name=web")
	if err != nil {
		t.Fatalf("GET status?name: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()
	var one service.Status
	if err := json.NewDecoder(resp2.Body).Decode(&one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if one.Name != "web" {
		t.Fatalf("unexpected status: %+v", one)
	}
}

func TestStatusUnknownServiceIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/status?name=ghost")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", resp.StatusCode)
	}
}

func TestCheckAndClearEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/check?name=web", "/api/clear?name=web"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST %s status = %d", path, resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}

func TestControlEndpointsRequireName(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/check", "/api/clear", "/api/clear?name=../etc"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("POST %s status = %d, want 400", path, resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"/":     "",
		"api":   "/api",
		"/api/": "/api",
		" /v1 ": "/v1",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSafeName(t *testing.T) {
	for _, ok := range []string{"web", "web-1", "db_prod", "a.b"} {
		if !isSafeName(ok) {
			t.Fatalf("%q rejected", ok)
		}
	}
	for _, bad := range []string{"", "a/b", `a\b`, "..", "a..b", "a b", "a;b"} {
		if isSafeName(bad) {
			t.Fatalf("%q accepted", bad)
		}
	}
}
