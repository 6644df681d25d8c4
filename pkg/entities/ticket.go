package entities

import (
	"github.com/Jacobbrewer1/ticketbot/pkg/custom"
)

// Ticket is a support request bound to a single chat thread.
type Ticket struct {
	// ID is the number of the ticket. It is assigned by the store.
	ID int64 `json:"id" bson:"id"`

	// GuildID is the ID of the guild that the ticket is in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// ThreadID is the ID of the thread that the ticket is bound to. This is unique across all tickets.
	ThreadID string `json:"thread_id" bson:"thread_id"`

	// CreatorID is the ID of the user that opened the ticket.
	CreatorID string `json:"creator_id" bson:"creator_id"`

	// IsPrivate is whether the ticket lives in a private thread. Once true it is never set back to false.
	IsPrivate bool `json:"is_private" bson:"is_private"`

	// Status is the lifecycle status of the ticket.
	Status Status `json:"status" bson:"status"`

	// Title is the title the ticket was opened with.
	Title string `json:"title" bson:"title"`

	// CreatedAt is the time that the ticket was created.
	CreatedAt custom.Datetime `json:"created_at" bson:"created_at"`

	// UpdatedAt is the time that the ticket was last changed.
	UpdatedAt custom.Datetime `json:"updated_at" bson:"updated_at"`

	// ClaimedBy is the ID of the staff member that claimed the ticket.
	ClaimedBy string `json:"claimed_by,omitempty" bson:"claimed_by,omitempty"`

	// LastUserMessageAt is the time of the last non-bot message in the thread.
	LastUserMessageAt *custom.Datetime `json:"last_user_message_at,omitempty" bson:"last_user_message_at,omitempty"`

	// ClosedAt is the time that the ticket reached a terminal status.
	ClosedAt *custom.Datetime `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
}

// IsClaimed reports whether a staff member has claimed the ticket.
func (t *Ticket) IsClaimed() bool {
	return t.ClaimedBy != ""
}

// Visibility returns a human readable visibility for the ticket.
func (t *Ticket) Visibility() string {
	if t.IsPrivate {
		return "private"
	}
	return "public"
}
