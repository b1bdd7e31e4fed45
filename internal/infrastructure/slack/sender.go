package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// DefaultAPIURL is the Slack Web API base.
const DefaultAPIURL = slackapi.APIURL

// Sender posts messages through the chat.postMessage Web API method.
type Sender struct {
	token string
	api   *slackapi.Client
}

var _ ports.ChannelSender = (*Sender)(nil)

// NewSender registers the bot token. An empty apiURL means DefaultAPIURL.
func NewSender(token, apiURL string, client *http.Client) *Sender {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Sender{
		token: token,
		api:   slackapi.New(token, slackapi.OptionAPIURL(apiURL), slackapi.OptionHTTPClient(client)),
	}
}

// Send posts msg.Text to the channel named by target (#name or channel id).
func (s *Sender) Send(ctx context.Context, target string, msg domain.Message) error {
	if s.token == "" {
		return errors.New("slack sender misconfigured: empty token")
	}

	_, _, err := s.api.PostMessageContext(ctx, target,
		slackapi.MsgOptionText(msg.Text, false),
		slackapi.MsgOptionEnableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", target, err)
	}
	return nil
}
