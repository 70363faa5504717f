package phab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/linnemanlabs/phalerts/internal/reconcile"
)

// conduitCall is one request received by the fake Conduit server.
type conduitCall struct {
	Method string
	Params map[string]any
	Output string
}

// fakeConduit serves canned results per method and records calls.
type fakeConduit struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []conduitCall
	results map[string]string
	status  int
}

func newFakeConduit(t *testing.T, results map[string]string) (*fakeConduit, *httptest.Server) {
	t.Helper()
	f := &fakeConduit{t: t, results: results, status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeConduit) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		f.t.Errorf("method = %s, want POST", r.Method)
	}
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}
	method := strings.TrimPrefix(r.URL.Path, "/api/")
	var params map[string]any
	if err := json.Unmarshal([]byte(r.PostForm.Get("params")), &params); err != nil {
		f.t.Errorf("decode params: %v", err)
	}

	f.mu.Lock()
	f.calls = append(f.calls, conduitCall{Method: method, Params: params, Output: r.PostForm.Get("output")})
	status := f.status
	body, ok := f.results[method]
	f.mu.Unlock()

	w.WriteHeader(status)
	if !ok {
		body = `{"result":null,"error_code":"ERR-CONDUIT-CORE","error_info":"no such method"}`
	}
	_, _ = w.Write([]byte(body))
}

func (f *fakeConduit) lastCall() conduitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		f.t.Fatal("no conduit calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(srv.URL, "phalerts-bot", "api-secret", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		url   string
		token string
	}{
		{"empty url", "", "tok"},
		{"relative url", "phab.example.com", "tok"},
		{"empty token", "https://phab.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.url, "bot", tt.token); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTaskURL_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	c, err := New("https://phab.example.com/", "bot", "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := c.TaskURL(42), "https://phab.example.com/T42"; got != want {
		t.Errorf("TaskURL = %q, want %q", got, want)
	}
}

func TestCall_SendsTokenAndFormFields(t *testing.T) {
	t.Parallel()

	f, srv := newFakeConduit(t, map[string]string{
		"project.search": `{"result":{"data":[],"cursor":{"after":null}}}`,
	})
	c := newTestClient(t, srv)

	if _, err := c.SearchGroups(context.Background(), "infra"); err != nil {
		t.Fatalf("SearchGroups: %v", err)
	}

	call := f.lastCall()
	if call.Method != "project.search" {
		t.Errorf("method = %q, want project.search", call.Method)
	}
	if call.Output != "json" {
		t.Errorf("output = %q, want json", call.Output)
	}
	conduit, _ := call.Params["__conduit__"].(map[string]any)
	if conduit["token"] != "api-secret" {
		t.Errorf("__conduit__.token = %v, want api-secret", conduit["token"])
	}
}

func TestCall_ConduitErrorCode(t *testing.T) {
	t.Parallel()

	_, srv := newFakeConduit(t, map[string]string{
		"project.search": `{"result":null,"error_code":"ERR-INVALID-AUTH","error_info":"API token is invalid."}`,
	})
	c := newTestClient(t, srv)

	_, err := c.SearchGroups(context.Background(), "infra")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "ERR-INVALID-AUTH" {
		t.Errorf("Code = %q, want ERR-INVALID-AUTH", apiErr.Code)
	}
	if !IsInvalidAuth(err) {
		t.Error("IsInvalidAuth = false, want true")
	}
	if reconcile.ErrorKind(err) != reconcile.KindTracker {
		t.Errorf("ErrorKind = %q, want %q", reconcile.ErrorKind(err), reconcile.KindTracker)
	}
}

func TestCall_HTTPStatusError(t *testing.T) {
	t.Parallel()

	f, srv := newFakeConduit(t, map[string]string{"maniphest.search": `gateway down`})
	f.status = http.StatusBadGateway
	c := newTestClient(t, srv)

	_, err := c.SearchTickets(context.Background(), reconcile.TicketQuery{Title: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", apiErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "gateway down") {
		t.Errorf("error %q should include response body", err.Error())
	}
}

func TestCall_ObserverSeesEveryCall(t *testing.T) {
	t.Parallel()

	_, srv := newFakeConduit(t, map[string]string{
		"project.search": `{"result":{"data":[],"cursor":{"after":null}}}`,
	})

	type obs struct{ method, outcome string }
	var (
		mu  sync.Mutex
		got []obs
	)
	c := newTestClient(t, srv, WithObserver(func(method, outcome string, dur time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		if dur < 0 {
			t.Errorf("negative duration %v", dur)
		}
		got = append(got, obs{method, outcome})
	}))

	_, _ = c.SearchGroups(context.Background(), "infra")
	_, _ = c.SearchTickets(context.Background(), reconcile.TicketQuery{Title: "x"})

	want := []obs{{"project.search", "success"}, {"maniphest.search", "error"}}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(obs{})); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	t.Parallel()

	_, srv := newFakeConduit(t, map[string]string{
		"project.search": `{"result":{"data":[],"cursor":{"after":null}}}`,
	})
	c := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SearchGroups(ctx, "infra")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
