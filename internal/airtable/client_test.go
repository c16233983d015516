package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/seiji-watch/diet-tracker/internal/log"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("key-test", "appTEST", log.NewNop(), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New("", "appTEST", log.NewNop()); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := New("key", "", log.NewNop()); err == nil {
		t.Error("expected error for missing base ID")
	}
}

func TestWithRate(t *testing.T) {
	c, err := New("key", "appTEST", log.NewNop(), WithRate(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := float64(c.limiter.Limit()); got != 2 {
		t.Errorf("limiter rate = %v, want 2", got)
	}

	// Non-positive rates keep the documented default.
	c, err = New("key", "appTEST", log.NewNop(), WithRate(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := float64(c.limiter.Limit()); got != requestsPerSecond {
		t.Errorf("limiter rate = %v, want %d", got, requestsPerSecond)
	}
}

func TestList_OffsetPaging(t *testing.T) {
	var requests int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer key-test" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/appTEST/Bills" {
			t.Errorf("path = %q", r.URL.Path)
		}
		switch r.URL.Query().Get("offset") {
		case "":
			fmt.Fprint(w, `{"records": [
				{"id": "rec1", "fields": {"Name": "法案A"}},
				{"id": "rec2", "fields": {"Name": "法案B"}}
			], "offset": "page2"}`)
		case "page2":
			fmt.Fprint(w, `{"records": [{"id": "rec3", "fields": {"Name": "法案C"}}]}`)
		default:
			http.Error(w, "bad offset", http.StatusBadRequest)
		}
	}))

	records, err := c.List(context.Background(), "Bills")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[2].ID != "rec3" {
		t.Errorf("last record = %q, want rec3", records[2].ID)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("made %d requests, want 2 pages", requests)
	}
}

func TestCreate(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		var body struct {
			Fields Fields `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Fields["Name"] != "新法案" {
			t.Errorf("fields = %v", body.Fields)
		}
		fmt.Fprint(w, `{"id": "recNEW", "fields": {"Name": "新法案"}}`)
	}))

	rec, err := c.Create(context.Background(), "Bills", Fields{"Name": "新法案"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != "recNEW" {
		t.Errorf("ID = %q, want recNEW", rec.ID)
	}
}

func TestUpdate(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if r.URL.Path != "/appTEST/Bills/rec1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"id": "rec1", "fields": {"Status": "passed"}}`)
	}))

	rec, err := c.Update(context.Background(), "Bills", "rec1", Fields{"Status": "passed"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Fields["Status"] != "passed" {
		t.Errorf("fields = %v", rec.Fields)
	}
}

func TestDo_RetriesOn429(t *testing.T) {
	var requests int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"records": []}`)
	}))

	if _, err := c.List(context.Background(), "Bills"); err != nil {
		t.Fatalf("List should succeed after 429 retry: %v", err)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("made %d requests, want 2", requests)
	}
}

func TestDo_ClientErrorIsTerminal(t *testing.T) {
	var requests int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error": {"message": "Unknown field name"}}`)
	}))

	_, err := c.Create(context.Background(), "Bills", Fields{"Bad": true})
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
	if got := err.Error(); !strings.Contains(got, "Unknown field name") {
		t.Errorf("error %q should carry the API message", got)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Errorf("made %d requests, want 1 (no retry on 4xx)", requests)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"30", "30s"},
		{"0", "0s"},
		{"", "2s"},
		{"garbage", "2s"},
		{"-1", "2s"},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in).String(); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
