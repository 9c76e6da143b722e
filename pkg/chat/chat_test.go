package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guri-assistant/guri/pkg/bus"
)

func testAdapter(t *testing.T, cfg AdapterConfig) (*Adapter, *bus.Bus, *time.Time) {
	t.Helper()
	b := bus.New()
	t.Cleanup(b.Close)
	if cfg.BotName == "" {
		cfg.BotName = "bot"
	}
	a := NewAdapter(cfg, b)
	now := time.Unix(1000, 0)
	a.now = func() time.Time { return now }
	return a, b, &now
}

func expectPrompt(t *testing.T, b *bus.Bus, wantText string) *bus.Prompt {
	t.Helper()
	select {
	case p := <-b.Prompts():
		if p.Text != wantText {
			t.Errorf("prompt text = %q; want %q", p.Text, wantText)
		}
		return p
	case <-time.After(time.Second):
		t.Fatal("no prompt published")
		return nil
	}
}

func expectNoPrompt(t *testing.T, b *bus.Bus) {
	t.Helper()
	select {
	case p := <-b.Prompts():
		t.Fatalf("unexpected prompt %q", p.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMentionBecomesPrompt(t *testing.T) {
	a, b, _ := testAdapter(t, AdapterConfig{})
	a.Handle(Message{Author: "alice", Text: "@bot おはよう"})
	p := expectPrompt(t, b, "おはよう")
	if p.Source != bus.SourceChat || p.Priority != bus.PriorityNormal {
		t.Errorf("prompt = source %q priority %d", p.Source, p.Priority)
	}
	if p.Reply == nil {
		t.Error("prompt has no reply handle")
	}
}

func TestPerAuthorCooldown(t *testing.T) {
	a, b, now := testAdapter(t, AdapterConfig{})

	a.Handle(Message{Author: "alice", Text: "@bot おはよう"})
	expectPrompt(t, b, "おはよう")

	*now = now.Add(10 * time.Second)
	a.Handle(Message{Author: "alice", Text: "@bot 今日何する？"})
	expectNoPrompt(t, b)

	// A different author is not throttled by alice's trigger.
	a.Handle(Message{Author: "carol", Text: "@bot こんにちは"})
	expectPrompt(t, b, "こんにちは")

	*now = now.Add(21 * time.Second) // t = 31s for alice
	a.Handle(Message{Author: "alice", Text: "@bot 続き"})
	expectPrompt(t, b, "続き")
}

func TestEveryMessageRecorded(t *testing.T) {
	var recorded []Message
	a, b, _ := testAdapter(t, AdapterConfig{
		OnMessage: func(m Message) { recorded = append(recorded, m) },
	})

	a.Handle(Message{Author: "alice", Text: "ただの雑談"})
	expectNoPrompt(t, b)
	a.Handle(Message{Author: "alice", Text: "@bot 質問"})
	expectPrompt(t, b, "質問")

	if len(recorded) != 2 {
		t.Fatalf("recorded = %d messages; want 2", len(recorded))
	}
	if recorded[0].Text != "ただの雑談" || recorded[0].At.IsZero() {
		t.Errorf("recorded[0] = %+v", recorded[0])
	}
}

func TestMentionPhrase(t *testing.T) {
	a, b, _ := testAdapter(t, AdapterConfig{MentionPhrases: []string{"ぐりちゃん"}})
	a.Handle(Message{Author: "dan", Text: "ぐりちゃん 元気？"})
	expectPrompt(t, b, "元気？")
}

func TestReplyPostsToSend(t *testing.T) {
	var sent string
	a, b, _ := testAdapter(t, AdapterConfig{
		Send: func(text string) error { sent = text; return nil },
	})
	a.Handle(Message{Author: "alice", Text: "@bot おはよう"})
	p := expectPrompt(t, b, "おはよう")
	p.Reply("おはようございます")
	if sent != "おはようございます" {
		t.Errorf("sent = %q", sent)
	}
}

func TestWireMessageNormalize(t *testing.T) {
	tests := []struct {
		raw        string
		author, text string
	}{
		{`{"author":"a","text":"hi"}`, "a", "hi"},
		{`{"chatter":"b","content":"yo"}`, "b", "yo"},
		{`{"author":"c","message":{"text":"nested"}}`, "c", "nested"},
	}
	for _, tc := range tests {
		var w wireMessage
		if err := json.Unmarshal([]byte(tc.raw), &w); err != nil {
			t.Fatal(err)
		}
		m := w.normalize(time.Now())
		if m.Author != tc.author || m.Text != tc.text {
			t.Errorf("normalize(%s) = %+v", tc.raw, m)
		}
	}
}

func TestClientReadsAndReplies(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]string{"author": "alice", "text": "@bot おはよう"})
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
	}))
	defer srv.Close()

	b := bus.New()
	defer b.Close()
	a := NewAdapter(AdapterConfig{BotName: "bot"}, b)
	client := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), a, nil)
	a.cfg.Send = client.Send

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	p := expectPrompt(t, b, "おはよう")
	p.Reply("おはよう、alice")

	select {
	case data := <-received:
		if !strings.Contains(data, "おはよう、alice") {
			t.Errorf("server received %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never reached the server")
	}
}
