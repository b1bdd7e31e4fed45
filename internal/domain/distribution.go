package domain

import "time"

// ChannelType enumerates notification channel families.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelSlack    ChannelType = "slack"
	ChannelEmail    ChannelType = "email"
)

// KnownChannel reports whether t is a supported channel type.
func KnownChannel(t ChannelType) bool {
	switch t {
	case ChannelTelegram, ChannelSlack, ChannelEmail:
		return true
	}
	return false
}

// ChannelConfig decides which papers a channel receives and where they go.
type ChannelConfig struct {
	Type         ChannelType
	Enabled      bool
	MinRelevance int
	Targets      []string
}

// Qualifies reports whether paper should be sent on this channel.
func (c ChannelConfig) Qualifies(p Paper) bool {
	return c.Enabled && c.MinRelevance <= p.RelevanceScore
}

// Message is a formatted, channel-specific rendering of a paper.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// DistributionAttempt is one append-only ledger row.
type DistributionAttempt struct {
	ID            int64
	PaperID       string
	ChannelType   ChannelType
	ChannelTarget string
	AttemptedAt   time.Time
	Success       bool
	ErrorDetail   string
}

// AttemptKey identifies the idempotency tuple of an attempt.
type AttemptKey struct {
	PaperID       string
	ChannelType   ChannelType
	ChannelTarget string
}

// Key returns the idempotency tuple of the attempt.
func (a DistributionAttempt) Key() AttemptKey {
	return AttemptKey{PaperID: a.PaperID, ChannelType: a.ChannelType, ChannelTarget: a.ChannelTarget}
}
