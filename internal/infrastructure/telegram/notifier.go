package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// maxMessageLen is the Bot API limit for one text message.
const maxMessageLen = 4096

// Bot is the part of the bot API the sender needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates Bot instances (allows mocking).
type BotFactory func(token, apiEndpoint string, client *http.Client) (Bot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// Sender posts paper notifications to Telegram chats and channels.
type Sender struct {
	token    string
	endpoint string
	client   *http.Client
	factory  BotFactory

	mu  sync.Mutex
	bot Bot
}

var _ ports.ChannelSender = (*Sender)(nil)

// NewSender registers the bot token. An empty endpoint means the public Bot API.
func NewSender(token, endpoint string, client *http.Client) *Sender {
	return NewSenderWithFactory(token, endpoint, client, defaultBotFactory)
}

// NewSenderWithFactory is NewSender with an injectable bot constructor.
func NewSenderWithFactory(token, endpoint string, client *http.Client, factory BotFactory) *Sender {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Sender{token: token, endpoint: endpoint, client: client, factory: factory}
}

// Send delivers msg to target, a numeric chat ID or an @channel name.
func (s *Sender) Send(ctx context.Context, target string, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.token == "" {
		return errors.New("telegram sender misconfigured: empty bot token")
	}

	bot, err := s.connect()
	if err != nil {
		return err
	}

	cfg, err := newMessage(target, msg)
	if err != nil {
		return err
	}

	if _, err := bot.Send(cfg); err != nil {
		return fmt.Errorf("telegram send to %s: %w", target, err)
	}
	return nil
}

// connect creates the bot lazily; construction calls getMe, so a failure is
// retried on the next send.
func (s *Sender) connect() (Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bot != nil {
		return s.bot, nil
	}
	bot, err := s.factory(s.token, s.endpoint, s.client)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	s.bot = bot
	return bot, nil
}

func newMessage(target string, msg domain.Message) (tgbotapi.MessageConfig, error) {
	target = strings.TrimSpace(target)

	text, parseMode := msg.HTML, tgbotapi.ModeHTML
	if text == "" || len(text) > maxMessageLen {
		text, parseMode = truncate(msg.Text, maxMessageLen), ""
	}

	var cfg tgbotapi.MessageConfig
	switch {
	case strings.HasPrefix(target, "@"):
		cfg = tgbotapi.NewMessageToChannel(target, text)
	default:
		chatID, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("telegram target %q is neither a chat id nor an @channel", target)
		}
		cfg = tgbotapi.NewMessage(chatID, text)
	}
	cfg.ParseMode = parseMode
	cfg.DisableWebPagePreview = true
	return cfg, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const ellipsis = "…"
	cut := limit - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
