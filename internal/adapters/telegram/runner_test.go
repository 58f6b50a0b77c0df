package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ogurasousui/docack/internal/core/bot"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	events []bot.Event
}

func (s *recordingSubmitter) Submit(_ context.Context, ev bot.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSubmitter) snapshot() []bot.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bot.Event(nil), s.events...)
}

func privateMessage(chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID, Type: "private"}}
}

func command(chatID int64, text string) tgbotapi.Update {
	msg := privateMessage(chatID)
	msg.Text = text
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	return tgbotapi.Update{Message: msg}
}

func TestRunner_ToEvent(t *testing.T) {
	t.Parallel()

	r := NewRunner(&fakeAPI{}, nil, &recordingSubmitter{}, 30, nil)

	text := privateMessage(42)
	text.Text = "1042"

	photo := privateMessage(42)
	photo.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}

	doc := privateMessage(42)
	doc.Document = &tgbotapi.Document{FileID: "doc", MimeType: "image/png"}

	sticker := privateMessage(42)

	tests := []struct {
		name   string
		update tgbotapi.Update
		want   bot.Kind
	}{
		{name: "start", update: command(42, "/start"), want: bot.KindStart},
		{name: "cancel", update: command(42, "/cancel"), want: bot.KindCancel},
		{name: "stats", update: command(42, "/stats"), want: bot.KindStats},
		{name: "unread", update: command(42, "/unread"), want: bot.KindUnread},
		{name: "unknown command", update: command(42, "/foo"), want: bot.KindHelp},
		{name: "text", update: tgbotapi.Update{Message: text}, want: bot.KindText},
		{name: "photo", update: tgbotapi.Update{Message: photo}, want: bot.KindImage},
		{name: "image document", update: tgbotapi.Update{Message: doc}, want: bot.KindImage},
		{name: "other", update: tgbotapi.Update{Message: sticker}, want: bot.KindHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := r.toEvent(tt.update)
			if !ok {
				t.Fatal("expected event")
			}
			if ev.Kind != tt.want || ev.ExternalID != "42" {
				t.Fatalf("unexpected event %+v", ev)
			}
			if tt.want == bot.KindImage && ev.Image == nil {
				t.Fatal("image event must carry a source")
			}
		})
	}
}

func TestRunner_IgnoresGroupsAndNonMessages(t *testing.T) {
	t.Parallel()

	r := NewRunner(&fakeAPI{}, nil, &recordingSubmitter{}, 30, nil)

	group := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100, Type: "group"}, Text: "hi"}
	if _, ok := r.toEvent(tgbotapi.Update{Message: group}); ok {
		t.Fatal("group messages must be ignored")
	}
	if _, ok := r.toEvent(tgbotapi.Update{}); ok {
		t.Fatal("updates without a message must be ignored")
	}
}

func TestRunner_RunSubmitsInOrder(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{updates: make(chan tgbotapi.Update, 3)}
	sub := &recordingSubmitter{}
	r := NewRunner(api, nil, sub, 30, nil)

	first := privateMessage(1)
	first.Text = "a"
	second := privateMessage(1)
	second.Text = "b"
	api.updates <- tgbotapi.Update{Message: first}
	api.updates <- tgbotapi.Update{Message: second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(sub.snapshot()) < 2 {
		select {
		case <-deadline:
			t.Fatal("updates were not submitted")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	events := sub.snapshot()
	if events[0].Text != "a" || events[1].Text != "b" {
		t.Fatalf("unexpected order %+v", events)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if !api.stopped {
		t.Fatal("expected polling to be stopped")
	}
}
