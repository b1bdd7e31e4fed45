package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PaperScanner/internal/domain"
)

func TestSenderPostsMessage(t *testing.T) {
	t.Parallel()

	var channel, text, unfurl string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("token") != "xoxb" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		channel = r.PostForm.Get("channel")
		text = r.PostForm.Get("text")
		unfurl = r.PostForm.Get("unfurl_links")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1700000000.000100"}`))
	}))
	defer server.Close()

	s := NewSender("xoxb", server.URL, server.Client())
	if err := s.Send(context.Background(), "#research", domain.Message{Text: "*hi* <https://arxiv.org|paper>"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if channel != "#research" || text != "*hi* <https://arxiv.org|paper>" || unfurl != "true" {
		t.Fatalf("unexpected payload: channel=%q text=%q unfurl=%q", channel, text, unfurl)
	}
}

func TestSenderErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "api error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
			},
			want: "channel_not_found",
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "30")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: "retry after 30s",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: "502",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			err := NewSender("xoxb", server.URL+"/", server.Client()).Send(context.Background(), "#c", domain.Message{Text: "x"})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSenderRequiresToken(t *testing.T) {
	t.Parallel()

	if err := NewSender("", "", nil).Send(context.Background(), "#c", domain.Message{}); err == nil {
		t.Fatalf("expected error for missing token")
	}
}
