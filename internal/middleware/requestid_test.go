package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesID(t *testing.T) {
	var fromCtx string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetRequestID(r.Context())
		if !ok {
			t.Fatalf("request id not in context")
		}
		fromCtx = id
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/comandas", nil)

	RequestID(next).ServeHTTP(w, r)

	header := w.Result().Header.Get(RequestIDHeader)
	if header == "" {
		t.Fatalf("response has no %s header", RequestIDHeader)
	}
	if header != fromCtx {
		t.Fatalf("header id %q differs from context id %q", header, fromCtx)
	}
	if _, err := uuid.Parse(header); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", header, err)
	}
}

func TestRequestID_KeepsIncomingID(t *testing.T) {
	incoming := uuid.NewString()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/comandas", nil)
	r.Header.Set(RequestIDHeader, incoming)

	RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, r)

	if got := w.Result().Header.Get(RequestIDHeader); got != incoming {
		t.Fatalf("request id = %q, want %q", got, incoming)
	}
}

func TestRequestID_ReplacesMalformedID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/comandas", nil)
	r.Header.Set(RequestIDHeader, "not a uuid\n")

	RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, r)

	got := w.Result().Header.Get(RequestIDHeader)
	if got == "not a uuid\n" {
		t.Fatalf("malformed request id was kept")
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := GetRequestID(r.Context()); ok {
		t.Fatalf("expected no request id in plain context")
	}
}
