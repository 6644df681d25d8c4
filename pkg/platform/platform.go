package platform

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a member, thread or message does not exist.
var ErrNotFound = errors.New("not found")

// Member is a guild member as seen by the ticket system.
type Member struct {
	ID          string
	GuildID     string
	DisplayName string
	Roles       []string

	// Administrator is whether the member holds the guild wide administrator capability.
	Administrator bool

	// Bot is whether the member is a bot or system account.
	Bot bool
}

// HasRole reports whether the member holds the role.
func (m *Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Mention returns the mention markup for the member.
func (m *Member) Mention() string {
	return "<@" + m.ID + ">"
}

// Thread is a conversation thread under a parent channel.
type Thread struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	Private  bool
	Locked   bool
	Archived bool
}

// Message is a message posted in a channel or thread.
type Message struct {
	ID         string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Content    string
	Timestamp  time.Time

	// Attachments are the URLs of any files attached to the message.
	Attachments []string
}

// File is a named blob attached to an outgoing message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// EmbedField is a field of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a structured summary attached to a message.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
}

// Outgoing is a message to send.
type Outgoing struct {
	Content string
	Embed   *Embed
	Files   []File

	// MentionRoles are the roles that may be pinged by the content.
	MentionRoles []string
}

// ThreadEdit changes the fields that are set.
type ThreadEdit struct {
	Name     *string
	Locked   *bool
	Archived *bool
}

// Platform is the chat platform that tickets live on.
type Platform interface {
	// CreateThread creates a thread under the parent channel.
	CreateThread(ctx context.Context, parentID, name string, private bool, reason string) (*Thread, error)

	// Thread gets a thread.
	Thread(ctx context.Context, threadID string) (*Thread, error)

	// EditThread changes the name, lock or archive state of a thread.
	EditThread(ctx context.Context, threadID string, edit ThreadEdit) (*Thread, error)

	// AddThreadMember adds a user to a thread.
	AddThreadMember(ctx context.Context, threadID, userID string) error

	// RemoveThreadMember removes a user from a thread.
	RemoveThreadMember(ctx context.Context, threadID, userID string) error

	// ThreadMembers lists the current members of a thread.
	ThreadMembers(ctx context.Context, guildID, threadID string) ([]*Member, error)

	// Member resolves a guild member.
	Member(ctx context.Context, guildID, userID string) (*Member, error)

	// RoleMembers lists the members holding any of the roles.
	RoleMembers(ctx context.Context, guildID string, roleIDs []string) ([]*Member, error)

	// Send posts a message to a channel or thread.
	Send(ctx context.Context, channelID string, msg *Outgoing) (*Message, error)

	// SendDirect posts a message to the direct message channel of a user.
	SendDirect(ctx context.Context, userID string, msg *Outgoing) error

	// React adds a reaction to a message.
	React(ctx context.Context, channelID, messageID, emoji string) error

	// FirstMessage gets the oldest message of a channel.
	FirstMessage(ctx context.Context, channelID string) (*Message, error)

	// History lists every message of a channel, oldest first.
	History(ctx context.Context, channelID string) ([]*Message, error)
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
