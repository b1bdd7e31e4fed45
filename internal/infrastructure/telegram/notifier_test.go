package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"PaperScanner/internal/domain"
)

type recordingBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *recordingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.err
}

func factoryFor(bot Bot, calls *int) BotFactory {
	return func(string, string, *http.Client) (Bot, error) {
		*calls++
		return bot, nil
	}
}

func TestSenderTargets(t *testing.T) {
	t.Parallel()

	bot := &recordingBot{}
	calls := 0
	s := NewSenderWithFactory("token", "", nil, factoryFor(bot, &calls))
	msg := domain.Message{Text: "plain", HTML: "<b>bold</b>"}

	if err := s.Send(context.Background(), "-100123", msg); err != nil {
		t.Fatalf("send to chat: %v", err)
	}
	if err := s.Send(context.Background(), "@papers", msg); err != nil {
		t.Fatalf("send to channel: %v", err)
	}
	if err := s.Send(context.Background(), "papers", msg); err == nil {
		t.Fatalf("expected error for malformed target")
	}

	if calls != 1 {
		t.Fatalf("expected bot to be created once, got %d", calls)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(bot.sent))
	}

	chat := bot.sent[0].(tgbotapi.MessageConfig)
	if chat.ChatID != -100123 || chat.Text != "<b>bold</b>" || chat.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("unexpected chat message: %+v", chat)
	}
	channel := bot.sent[1].(tgbotapi.MessageConfig)
	if channel.ChannelUsername != "@papers" {
		t.Fatalf("unexpected channel message: %+v", channel)
	}
}

func TestSenderFallsBackToPlainText(t *testing.T) {
	t.Parallel()

	cfg, err := newMessage("1", domain.Message{Text: "plain"})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if cfg.Text != "plain" || cfg.ParseMode != "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	long := strings.Repeat("é", maxMessageLen)
	cfg, err = newMessage("1", domain.Message{Text: long, HTML: "<i>" + long + "</i>"})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if len(cfg.Text) > maxMessageLen || cfg.ParseMode != "" {
		t.Fatalf("expected truncated plain text, got %d bytes mode %q", len(cfg.Text), cfg.ParseMode)
	}
}

func TestSenderRetriesConnect(t *testing.T) {
	t.Parallel()

	bot := &recordingBot{}
	attempts := 0
	s := NewSenderWithFactory("token", "", nil, func(string, string, *http.Client) (Bot, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("unauthorized")
		}
		return bot, nil
	})

	if err := s.Send(context.Background(), "1", domain.Message{Text: "x"}); err == nil {
		t.Fatalf("expected connect error")
	}
	if err := s.Send(context.Background(), "1", domain.Message{Text: "x"}); err != nil {
		t.Fatalf("second send: %v", err)
	}
}

func TestSenderPropagatesSendError(t *testing.T) {
	t.Parallel()

	calls := 0
	s := NewSenderWithFactory("token", "", nil, factoryFor(&recordingBot{err: errors.New("chat not found")}, &calls))
	if err := s.Send(context.Background(), "1", domain.Message{Text: "x"}); err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestSenderAgainstBotAPI(t *testing.T) {
	t.Parallel()

	var sentText, sentChat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"paperbot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			sentText, sentChat = r.Form.Get("text"), r.Form.Get("chat_id")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := NewSender("token", server.URL+"/bot%s/%s", server.Client())
	if err := s.Send(context.Background(), "42", domain.Message{Text: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sentText != "hello" || sentChat != "42" {
		t.Fatalf("unexpected request: chat=%q text=%q", sentChat, sentText)
	}
}
