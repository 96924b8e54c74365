package telegram

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetUpdates_ParsesTextAndVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getUpdates" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("offset"); got != "5" {
			t.Errorf("unexpected offset: %s", got)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":11,"message":{"chat":{"id":123},"text":"hello","date":1700000000}},
			{"update_id":12,"message":{"chat":{"id":456},"voice":{"file_id":"voice-1","duration":3},"date":1700000001}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 2*time.Second)
	updates, err := c.GetUpdates(5, 0)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Message == nil || updates[0].Message.Text == nil || *updates[0].Message.Text != "hello" {
		t.Fatalf("unexpected text update: %#v", updates[0])
	}
	if updates[1].Message == nil || updates[1].Message.Voice == nil || updates[1].Message.Voice.FileID != "voice-1" {
		t.Fatalf("unexpected voice update: %#v", updates[1])
	}
}

func TestGetUpdates_NotOKReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 2*time.Second)
	updates, err := c.GetUpdates(0, 0)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if updates != nil {
		t.Fatalf("expected nil updates, got %#v", updates)
	}
}

func TestSendMessage_And_SendMarkdown(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 2*time.Second)
	if err := c.SendMessage(123, "plain answer"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := c.SendMarkdown(123, "🎙️ You said: _hi_"); err != nil {
		t.Fatalf("SendMarkdown failed: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bodies))
	}
	if strings.Contains(bodies[0], "parse_mode") {
		t.Fatalf("plain send should not set parse_mode: %s", bodies[0])
	}
	if !strings.Contains(bodies[1], `"parse_mode":"Markdown"`) {
		t.Fatalf("expected Markdown parse_mode, got: %s", bodies[1])
	}
}

func TestSendChatAction_Typing(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendChatAction" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 2*time.Second)
	if err := c.SendChatAction(99, "typing"); err != nil {
		t.Fatalf("SendChatAction failed: %v", err)
	}
	if !strings.Contains(gotBody, `"action":"typing"`) {
		t.Fatalf("expected typing action, got: %s", gotBody)
	}
	if !strings.Contains(gotBody, `"chat_id":99`) {
		t.Fatalf("expected chat_id, got: %s", gotBody)
	}
}

func TestFetchFile_ResolvesAndDownloads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/getFile", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("file_id"); got != "voice-1" {
			t.Errorf("unexpected file_id: %s", got)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"file_id":"voice-1","file_path":"voice/file_1.oga"}}`)
	})
	mux.HandleFunc("/voice/file_1.oga", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OggS-audio-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 2*time.Second)
	data, err := c.FetchFile("voice-1")
	if err != nil {
		t.Fatalf("FetchFile failed: %v", err)
	}
	if string(data) != "OggS-audio-bytes" {
		t.Fatalf("unexpected file bytes: %q", data)
	}
}

func TestFetchFile_RejectedFileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 2*time.Second)
	if _, err := c.FetchFile("bad"); err == nil {
		t.Fatal("expected error for rejected file_id")
	}
}
