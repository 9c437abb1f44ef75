package vk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

type recorded struct {
	mu   sync.Mutex
	path string
	q    url.Values
}

func newTestServer(t *testing.T, body string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.path = r.URL.Path
		rec.q = r.URL.Query()
		rec.mu.Unlock()
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	c := New(Config{Token: "secret", BaseURL: server.URL + "/method/"})
	return c, rec
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{Token: "x"})
	cfg := c.Config()
	if cfg.Version != DefaultVersion {
		t.Errorf("version = %q, want %q", cfg.Version, DefaultVersion)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("base url = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if c.HTTP.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.HTTP.Timeout, DefaultTimeout)
	}
}

func TestResolveGroupID(t *testing.T) {
	c, rec := newTestServer(t, `{"response":[{"id":12345,"name":"STAW club","screen_name":"stawclub"}]}`)

	owner, err := c.ResolveGroupID(context.Background(), "stawclub")
	if err != nil {
		t.Fatalf("ResolveGroupID: %v", err)
	}
	if owner != "-12345" {
		t.Errorf("owner = %q, want -12345", owner)
	}
	if rec.path != "/method/groups.getById" {
		t.Errorf("path = %q", rec.path)
	}
	if got := rec.q.Get("group_id"); got != "stawclub" {
		t.Errorf("group_id = %q", got)
	}
	if got := rec.q.Get("access_token"); got != "secret" {
		t.Errorf("access_token = %q", got)
	}
	if got := rec.q.Get("v"); got != DefaultVersion {
		t.Errorf("v = %q", got)
	}
}

func TestResolveGroupIDRemoteError(t *testing.T) {
	c, _ := newTestServer(t, `{"error":{"error_code":100,"error_msg":"One of the parameters specified was missing or invalid"}}`)

	_, err := c.ResolveGroupID(context.Background(), "nope")
	if !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped *APIError, got %v", err)
	}
	if apiErr.Code != 100 {
		t.Errorf("code = %d, want 100", apiErr.Code)
	}
}

func TestResolveGroupIDEmpty(t *testing.T) {
	c, _ := newTestServer(t, `{"response":[]}`)
	if _, err := c.ResolveGroupID(context.Background(), "ghost"); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
	if _, err := c.ResolveGroupID(context.Background(), "  "); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound for blank name, got %v", err)
	}
}

func TestRecentPosts(t *testing.T) {
	c, rec := newTestServer(t, `{"response":{"count":3,"items":[
		{"id":10,"date":900,"is_pinned":1,"text":"rules"},
		{"id":12,"date":1000,"text":"fresh"},
		{"id":11,"date":500,"text":"old"}]}}`)

	items, err := c.RecentPosts(context.Background(), "-1", 13)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if !items[0].IsPinned() || items[1].IsPinned() {
		t.Errorf("pinned flags wrong: %+v", items)
	}
	if items[1].CreatedAt().Unix() != 1000 {
		t.Errorf("created_at = %v", items[1].CreatedAt())
	}

	want := map[string]string{"owner_id": "-1", "offset": "0", "count": "13", "filter": "owner"}
	for k, v := range want {
		if got := rec.q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if rec.path != "/method/wall.get" {
		t.Errorf("path = %q", rec.path)
	}
}

func TestRecentPostsClampsCount(t *testing.T) {
	c, rec := newTestServer(t, `{"response":{"count":0,"items":[]}}`)

	if _, err := c.RecentPosts(context.Background(), "-1", 500); err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if got := rec.q.Get("count"); got != "100" {
		t.Errorf("count = %q, want 100", got)
	}
	if _, err := c.RecentPosts(context.Background(), "-1", 0); err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if got := rec.q.Get("count"); got != "1" {
		t.Errorf("count = %q, want 1", got)
	}
}

func TestCreateComment(t *testing.T) {
	c, rec := newTestServer(t, `{"response":{"comment_id":777}}`)

	id, err := c.CreateComment(context.Background(), "-42", 9, "🥇")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if id != 777 {
		t.Errorf("comment id = %d, want 777", id)
	}
	if rec.path != "/method/wall.createComment" {
		t.Errorf("path = %q", rec.path)
	}
	if rec.q.Get("owner_id") != "-42" || rec.q.Get("post_id") != "9" || rec.q.Get("message") != "🥇" {
		t.Errorf("unexpected params: %v", rec.q)
	}
}

func TestCreateCommentAPIError(t *testing.T) {
	c, _ := newTestServer(t, `{"error":{"error_code":213,"error_msg":"Access to status replies denied"}}`)

	_, err := c.CreateComment(context.Background(), "-42", 9, "+")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 213 || !strings.Contains(apiErr.Error(), "denied") {
		t.Errorf("unexpected api error: %v", apiErr)
	}
}

func TestSendMessage(t *testing.T) {
	c, rec := newTestServer(t, `{"response":55}`)

	id, err := c.SendMessage(context.Background(), "100", 70000, "hi")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if id != 55 {
		t.Errorf("message id = %d", id)
	}
	if rec.q.Get("user_id") != "100" || rec.q.Get("random_id") != "70000" {
		t.Errorf("unexpected params: %v", rec.q)
	}
}

func TestCallHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(Config{Token: "t", BaseURL: server.URL})
	_, err := c.RecentPosts(context.Background(), "-1", 13)
	if err == nil {
		t.Fatal("expected error for 502")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure must not look like an API error: %v", err)
	}
}

func TestCallBadJSON(t *testing.T) {
	c, _ := newTestServer(t, `not json`)
	if _, err := c.CreateComment(context.Background(), "-1", 1, "+"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLatestUnpinned(t *testing.T) {
	items := []WallItem{
		{ID: 1, Date: 2000, Pinned: 1},
		{ID: 3, Date: 1500},
		{ID: 2, Date: 1000},
	}
	got, ok := LatestUnpinned(items)
	if !ok || got.ID != 3 {
		t.Errorf("LatestUnpinned = %+v, %v; want id 3", got, ok)
	}

	if _, ok := LatestUnpinned([]WallItem{{ID: 1, Pinned: 1}}); ok {
		t.Error("expected no unpinned item")
	}
	if _, ok := LatestUnpinned(nil); ok {
		t.Error("expected no item in empty window")
	}
}

func TestURLs(t *testing.T) {
	if got := PostURL("-5", 7); got != "https://vk.com/wall-5_7" {
		t.Errorf("PostURL = %q", got)
	}
	if got := CommentURL("-5", 7, 9); got != "https://vk.com/wall-5_7?reply=9" {
		t.Errorf("CommentURL = %q", got)
	}
}
