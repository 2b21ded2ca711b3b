package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hylla/nexus/internal/domain"
)

// recorder captures requests made against a fake graph server.
type recorder struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]any
}

func (r *recorder) record(req *http.Request) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := req.Method + " " + req.URL.Path
	r.requests = append(r.requests, key)
	var body map[string]any
	if req.Body != nil && strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}
	if r.bodies == nil {
		r.bodies = map[string]map[string]any{}
	}
	r.bodies[key] = body
	return body
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/v1.0/", AccessToken: "tok", Timeout: time.Second})
}

func TestCreateEventPayload(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		rec.record(r)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "evt-1"})
	})

	due := time.Date(2026, 4, 1, 15, 30, 0, 0, time.UTC)
	id, err := client.CreateEvent(context.Background(), "user@corp", domain.Task{Title: "Ship", Description: "notes", DueDate: &due})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if id != "evt-1" {
		t.Fatalf("CreateEvent() id = %q", id)
	}
	body := rec.bodies["POST /v1.0/users/user@corp/calendar/events"]
	if body == nil {
		t.Fatalf("unexpected requests %v", rec.requests)
	}
	if body["subject"] != "[Nexus] Ship" || body["reminderMinutesBeforeStart"] != float64(60) {
		t.Fatalf("unexpected event body %#v", body)
	}
	end := body["end"].(map[string]any)
	if end["dateTime"] != "2026-04-01T16:30:00" || end["timeZone"] != "UTC" {
		t.Fatalf("unexpected end %#v", end)
	}

	if _, err := client.CreateEvent(context.Background(), "user@corp", domain.Task{Title: "x"}); !errors.Is(err, ErrDueDateRequired) {
		t.Fatalf("CreateEvent(no due) error = %v, want ErrDueDateRequired", err)
	}
	if _, err := client.CreateEvent(context.Background(), " ", domain.Task{Title: "x", DueDate: &due}); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("CreateEvent(no subject) error = %v, want ErrInvalidSubject", err)
	}
}

func TestCreateListItemCreatesListOnce(t *testing.T) {
	rec := &recorder{}
	var (
		mu    sync.Mutex
		lists []todoList
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := rec.record(r)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/todo/lists"):
			_ = json.NewEncoder(w).Encode(todoListPage{Value: append([]todoList{{ID: "other", DisplayName: "Groceries"}}, lists...)})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/todo/lists"):
			lists = append(lists, todoList{ID: "list-1", DisplayName: body["displayName"].(string)})
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "list-1"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/todo/lists/list-1/tasks"):
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "todo-" + body["importance"].(string)})
		default:
			http.NotFound(w, r)
		}
	})

	for _, tc := range []struct {
		priority domain.Priority
		want     string
	}{
		{priority: domain.PriorityUrgent, want: "todo-high"},
		{priority: domain.PriorityMedium, want: "todo-normal"},
		{priority: domain.PriorityLow, want: "todo-low"},
	} {
		id, err := client.CreateListItem(context.Background(), "sub", domain.Task{Title: "Ship", Priority: tc.priority})
		if err != nil {
			t.Fatalf("CreateListItem(%s) error = %v", tc.priority, err)
		}
		if id != tc.want {
			t.Fatalf("CreateListItem(%s) = %q, want %q", tc.priority, id, tc.want)
		}
	}
	creates := 0
	for _, req := range rec.requests {
		if req == "POST /v1.0/users/sub/todo/lists" {
			creates++
		}
	}
	if creates != 1 {
		t.Fatalf("expected list created once, got %d (%v)", creates, rec.requests)
	}
}

func TestDriveRoundTripAndErrors(t *testing.T) {
	var stored []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/v1.0/users/owner/drive/root:/Nexus/t1/plan v2.pdf:/content":
			stored, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "item-9"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1.0/users/owner/drive/items/item-9/content":
			_, _ = w.Write(stored)
		case r.Method == http.MethodDelete && r.URL.Path == "/v1.0/users/owner/drive/items/item-9":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/v1.0/users/owner/drive/items/boom/content":
			http.Error(w, "throttled", http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	id, err := client.UploadFile(ctx, "owner", "t1", "plan v2.pdf", strings.NewReader("pdf-bytes"))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if id != "item-9" {
		t.Fatalf("UploadFile() id = %q", id)
	}
	data, err := client.DownloadFile(ctx, "owner", id)
	if err != nil || string(data) != "pdf-bytes" {
		t.Fatalf("DownloadFile() = %q, %v", data, err)
	}
	if err := client.DeleteFile(ctx, "owner", id); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if _, err := client.DownloadFile(ctx, "owner", "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DownloadFile(gone) error = %v, want ErrNotFound", err)
	}
	_, err = client.DownloadFile(ctx, "owner", "boom")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusTooManyRequests {
		t.Fatalf("DownloadFile(boom) error = %v, want StatusError 429", err)
	}
}
