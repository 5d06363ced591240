package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateSessionTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"type":"text","text":"\"Fix flaky stream tests\""}]}`)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	client := NewStreamClient(nil)

	title := GenerateSessionTitle(context.Background(), client, cfg, "my stream tests keep flaking, help")
	if title != "Fix flaky stream tests" {
		t.Fatalf("title=%q", title)
	}
}

func TestGenerateSessionTitleTruncates(t *testing.T) {
	long := strings.Repeat("word ", 40)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"content":[{"type":"text","text":"%s"}]}`, long)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL

	title := GenerateSessionTitle(context.Background(), NewStreamClient(nil), cfg, "hello")
	if got := len([]rune(title)); got > titleMaxRunes {
		t.Fatalf("title length=%d want <= %d", got, titleMaxRunes)
	}
}

// Title generation is best-effort: every failure mode collapses to "".
func TestGenerateSessionTitleFailuresAreSilent(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer garbage.Close()

	cfg := DefaultConfig()

	cfg.BaseURL = failing.URL
	if got := GenerateSessionTitle(context.Background(), NewStreamClient(nil), cfg, "x"); got != "" {
		t.Fatalf("server error should yield empty title, got %q", got)
	}

	cfg.BaseURL = garbage.URL
	if got := GenerateSessionTitle(context.Background(), NewStreamClient(nil), cfg, "x"); got != "" {
		t.Fatalf("bad body should yield empty title, got %q", got)
	}

	if got := GenerateSessionTitle(context.Background(), NewStreamClient(nil), cfg, "   "); got != "" {
		t.Fatalf("blank message should yield empty title, got %q", got)
	}
	if got := GenerateSessionTitle(context.Background(), nil, cfg, "x"); got != "" {
		t.Fatalf("nil client should yield empty title, got %q", got)
	}
}
