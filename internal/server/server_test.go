package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type routeHandler struct {
	registered bool
}

func (h *routeHandler) Register(e *echo.Echo) {
	h.registered = true
	e.POST("/webhooks/whatsapp", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	})
}

func (s *Server) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRegistersHandlers(t *testing.T) {
	h := &routeHandler{}
	s := NewServer(nil, ":0", h, nil)
	if !h.registered {
		t.Fatal("handler was not registered")
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := s.serve(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from registered route, got %d", rec.Code)
	}
}

func TestPreflightAllowsAnyOrigin(t *testing.T) {
	s := NewServer(nil, ":0", &routeHandler{})

	req := httptest.NewRequest(http.MethodOptions, "/webhooks/whatsapp", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dashboard.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := s.serve(req)

	if rec.Code != http.StatusNoContent && rec.Code != http.StatusOK {
		t.Fatalf("preflight must be answered, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Fatalf("expected Access-Control-Allow-Origin *, got %q", got)
	}
	allowed := rec.Header().Get(echo.HeaderAccessControlAllowMethods)
	if !strings.Contains(allowed, http.MethodPost) {
		t.Fatalf("POST missing from allowed methods %q", allowed)
	}
}

func TestBodyLimitRejectsOversizedPayload(t *testing.T) {
	s := NewServer(nil, ":0", &routeHandler{})

	body := strings.NewReader(strings.Repeat("a", 11<<20))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := s.serve(req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized body, got %d", rec.Code)
	}
}

func TestNewServerDefaultsAddr(t *testing.T) {
	s := NewServer(nil, "")
	if s.addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", s.addr)
	}
}
