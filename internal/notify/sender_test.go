package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestTelegramSenderPostsForm(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.apiBase = srv.URL
	if err := s.Send(context.Background(), "auction closed", "slot settled at 70"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("expected sendMessage path, got %s", gotPath)
	}
	if gotForm.Get("chat_id") != "42" {
		t.Fatalf("expected chat_id 42, got %q", gotForm.Get("chat_id"))
	}
	if gotForm.Get("parse_mode") != "HTML" {
		t.Fatalf("expected HTML parse mode, got %q", gotForm.Get("parse_mode"))
	}
	text := gotForm.Get("text")
	if !strings.Contains(text, "<b>auction closed</b>") || !strings.Contains(text, "slot settled at 70") {
		t.Fatalf("unexpected message text %q", text)
	}
}

func TestTelegramSenderSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.apiBase = srv.URL
	err := s.Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected the API description in the error, got %v", err)
	}
}

func TestDiscordSenderPostsEmbed(t *testing.T) {
	var got discordWebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	if err := s.Send(context.Background(), "contract breached", "escrow refunded"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "contract breached" || e.Description != "escrow refunded" {
		t.Fatalf("unexpected embed %+v", e)
	}
	if e.Timestamp == "" {
		t.Fatal("expected a timestamp on the embed")
	}
}

func TestDiscordSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected a status error, got %v", err)
	}
}
