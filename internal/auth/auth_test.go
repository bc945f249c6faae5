package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
)

func fastRetry() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = time.Millisecond
	c.RetryWaitMax = 2 * time.Millisecond
	c.Logger = nil
	return c
}

func TestAuthenticate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "service" {
			t.Errorf("apikey = %q", got)
		}
		w.Write([]byte(`{"id":"user-1","email":"a@example.com","role":"authenticated"}`))
	}))
	defer srv.Close()

	c := NewProviderClient(srv.URL+"/", "service", WithRetryClient(fastRetry()))
	u, err := c.Authenticate(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != "user-1" || u.Email != "a@example.com" {
		t.Errorf("user = %+v", u)
	}
}

func TestAuthenticate_Unauthorized(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewProviderClient(srv.URL, "service", WithRetryClient(fastRetry()))
	_, err := c.Authenticate(context.Background(), "bad")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("401 should not be retried, got %d hits", hits.Load())
	}
}

func TestAuthenticate_EmptyTokenSkipsProvider(t *testing.T) {
	c := NewProviderClient("http://127.0.0.1:1", "service")
	if _, err := c.Authenticate(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticate_ServerErrorRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"user-2"}`))
	}))
	defer srv.Close()

	c := NewProviderClient(srv.URL, "service", WithRetryClient(fastRetry()))
	u, err := c.Authenticate(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != "user-2" {
		t.Errorf("ID = %q", u.ID)
	}
}

func TestAuthenticate_BadRequestIsNotUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad jwt header", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewProviderClient(srv.URL, "service", WithRetryClient(fastRetry()))
	_, err := c.Authenticate(context.Background(), "tok")
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestStatic(t *testing.T) {
	s := Static{"t1": {ID: "u1"}}
	if u, err := s.Authenticate(context.Background(), "t1"); err != nil || u.ID != "u1" {
		t.Fatalf("got %v, %v", u, err)
	}
	if _, err := s.Authenticate(context.Background(), "t2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
