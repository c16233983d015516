package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHostLimiter_PerHost(t *testing.T) {
	l := NewHostLimiter(1000, 1)

	ctx := context.Background()
	for _, u := range []string{
		"https://www.shugiin.go.jp/a",
		"https://www.sangiin.go.jp/b",
		"https://www.shugiin.go.jp/c",
	} {
		if err := l.Wait(ctx, u); err != nil {
			t.Fatalf("Wait(%s): %v", u, err)
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.limiters) != 2 {
		t.Errorf("limiters = %d, want one per host (2)", len(l.limiters))
	}
}

func TestHostLimiter_ContextCancel(t *testing.T) {
	l := NewHostLimiter(0.001, 1)

	ctx := context.Background()
	if err := l.Wait(ctx, "https://www.shugiin.go.jp/"); err != nil {
		t.Fatalf("first Wait should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "https://www.shugiin.go.jp/"); err == nil {
		t.Error("expected error when context expires before a token is available")
	}
}

func TestHostLimiter_BadURL(t *testing.T) {
	l := NewHostLimiter(1, 1)
	if err := l.Wait(context.Background(), "://bad"); err == nil {
		t.Error("expected error for unparseable URL")
	}
}

func TestRobotsChecker(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits++
		fmt.Fprintln(w, "User-agent: *\nDisallow: /private/")
	}))
	defer srv.Close()

	rc := NewRobotsChecker("diet-tracker-test", time.Second)
	ctx := context.Background()

	allowed, err := rc.Allowed(ctx, srv.URL+"/bills/208")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Error("public path should be allowed")
	}

	allowed, err = rc.Allowed(ctx, srv.URL+"/private/x")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if allowed {
		t.Error("disallowed path should be blocked")
	}

	if hits != 1 {
		t.Errorf("robots.txt fetched %d times, want 1 (cached per host)", hits)
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rc := NewRobotsChecker("diet-tracker-test", time.Second)
	allowed, err := rc.Allowed(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Error("404 robots.txt should allow all paths")
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	rc := NewRobotsChecker("diet-tracker-test", 100*time.Millisecond)
	allowed, err := rc.Allowed(context.Background(), "http://127.0.0.1:1/anything")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Error("unreachable robots.txt should fail open")
	}
}

func TestFetcher_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 1024))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, "diet-tracker-test", 100)
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(body) != 100 {
		t.Errorf("body = %d bytes, want capped at 100", len(body))
	}
}

func TestFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, "diet-tracker-test", 1024)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 500 response")
	}
}
