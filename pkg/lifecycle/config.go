package lifecycle

import (
	"time"
)

const (
	// DefaultMaxTitleLen is the longest title kept when none is configured.
	DefaultMaxTitleLen = 90

	// DefaultConfirmTimeout is how long a private close waits for "yes".
	DefaultConfirmTimeout = 15 * time.Second

	// DefaultResolutionTimeout is how long a public close waits for a resolution reaction.
	DefaultResolutionTimeout = 120 * time.Second

	// adminConcurrency bounds the membership calls in flight when granting or revoking admins.
	adminConcurrency = 4

	// listMineLimit is the most tickets listed for a user.
	listMineLimit = 10

	// auditLimit is the longest audit line sent to the log channel.
	auditLimit = 2000
)

// Config is the fixed configuration of the ticket lifecycle.
type Config struct {
	// PublicChannelID is the channel public tickets are opened from.
	PublicChannelID string

	// SupportChannelID is the channel private tickets are opened from.
	SupportChannelID string

	// LogChannelID receives audit lines and transcripts. Empty disables both.
	LogChannelID string

	// MaxTitleLen is the longest title kept, in characters.
	MaxTitleLen int

	// DMOnClose sends the transcript to the creator when a ticket closes.
	DMOnClose bool

	// ConfirmTimeout is how long a private close waits for confirmation.
	ConfirmTimeout time.Duration

	// ResolutionTimeout is how long a public close waits for a resolution reaction.
	ResolutionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTitleLen <= 0 {
		c.MaxTitleLen = DefaultMaxTitleLen
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.ResolutionTimeout <= 0 {
		c.ResolutionTimeout = DefaultResolutionTimeout
	}
	return c
}
