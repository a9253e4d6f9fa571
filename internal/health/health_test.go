package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeReport(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "memory", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "mcp", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := decodeReport(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	for _, name := range []string{"memory", "mcp"} {
		if body.Checks[name] != "ok" {
			t.Errorf("%s check = %q, want %q", name, body.Checks[name], "ok")
		}
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "memory", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "mcp", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	body := decodeReport(t, rec)
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["memory"] != "fail: connection refused" {
		t.Errorf("memory check = %q, want %q", body.Checks["memory"], "fail: connection refused")
	}
	if body.Checks["mcp"] != "ok" {
		t.Errorf("mcp check = %q, want %q", body.Checks["mcp"], "ok")
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeReport(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllCheckersFail(t *testing.T) {
	h := New(
		Checker{Name: "memory", Check: func(_ context.Context) error {
			return errors.New("timeout")
		}},
		Checker{Name: "mcp", Check: func(_ context.Context) error {
			return errors.New("no servers connected")
		}},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	body := decodeReport(t, rec)
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["memory"] != "fail: timeout" {
		t.Errorf("memory check = %q", body.Checks["memory"])
	}
	if body.Checks["mcp"] != "fail: no servers connected" {
		t.Errorf("mcp check = %q", body.Checks["mcp"])
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New(
		Checker{Name: "test", Check: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(
		Checker{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
