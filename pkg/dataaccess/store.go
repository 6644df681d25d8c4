package dataaccess

import (
	"context"
	"errors"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/custom"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
)

const (
	// DriverSQLite is the embedded SQLite store.
	DriverSQLite = "sqlite"

	// DriverMongo is the MongoDB store.
	DriverMongo = "mongo"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence layer for tickets, blacklist entries and config overrides.
//
// Every call is atomic and writes are serialized per process. Callers are expected to re-read a ticket
// before mutating it.
type Store interface {
	TicketStore
	BlacklistStore
	OverrideStore

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// TicketStore persists tickets.
type TicketStore interface {
	// CreateTicket inserts a ticket unless one already exists for the thread. It reports whether a
	// record was created. The stored ticket is returned either way.
	CreateTicket(ctx context.Context, ticket *entities.Ticket) (*entities.Ticket, bool, error)

	// GetTicketByThread gets a ticket by its thread ID.
	GetTicketByThread(ctx context.Context, threadID string) (*entities.Ticket, error)

	// UpdateStatus sets the status. A terminal status sets closed_at, any other status clears it.
	UpdateStatus(ctx context.Context, threadID string, status entities.Status) error

	// SetClaim sets the claimant. An empty member ID clears the claim.
	SetClaim(ctx context.Context, threadID string, memberID string) error

	// CloseTicket moves the ticket to a terminal status and stamps closed_at.
	CloseTicket(ctx context.Context, threadID string, status entities.Status) error

	// SetPrivate marks the ticket as private.
	SetPrivate(ctx context.Context, threadID string) error

	// UpdateLastUserMessage stamps last_user_message_at with the current time.
	UpdateLastUserMessage(ctx context.Context, threadID string) error

	// DeleteTicket removes the ticket record.
	DeleteTicket(ctx context.Context, threadID string) error

	// ListOpenByCreator lists the open and in progress tickets of a user.
	ListOpenByCreator(ctx context.Context, guildID, userID string) ([]*entities.Ticket, error)

	// ListOpen lists every open and in progress ticket in a guild.
	ListOpen(ctx context.Context, guildID string) ([]*entities.Ticket, error)

	// ListRecentTitles lists the titles of the most recent tickets in a guild, newest first.
	ListRecentTitles(ctx context.Context, guildID string, limit int) ([]string, error)

	// CountByStatus counts the tickets of a guild per status.
	CountByStatus(ctx context.Context, guildID string) ([]entities.StatusCount, error)

	// CountTotal counts every ticket in a guild.
	CountTotal(ctx context.Context, guildID string) (int64, error)

	// CountCreatedSince counts the tickets of a guild created after since.
	CountCreatedSince(ctx context.Context, guildID string, since time.Time) (int64, error)

	// ListStale lists active tickets whose last user message is older than olderThan.
	ListStale(ctx context.Context, guildID string, private bool, olderThan time.Time) ([]*entities.Ticket, error)

	// ListPurgeCandidates lists terminal tickets closed before olderThan.
	ListPurgeCandidates(ctx context.Context, guildID string, olderThan time.Time) ([]*entities.Ticket, error)
}

// BlacklistStore persists blacklist entries.
type BlacklistStore interface {
	// AddBlacklist adds or replaces a blacklist entry.
	AddBlacklist(ctx context.Context, entry *entities.BlacklistEntry) error

	// IsBlacklisted reports whether the user is blacklisted in the guild.
	IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error)

	// RemoveBlacklist removes a blacklist entry.
	RemoveBlacklist(ctx context.Context, guildID, userID string) error

	// ListBlacklist lists the blacklist entries of a guild.
	ListBlacklist(ctx context.Context, guildID string, limit int) ([]*entities.BlacklistEntry, error)
}

// OverrideStore persists config overrides for administrative inspection.
type OverrideStore interface {
	// GetOverride gets an override.
	GetOverride(ctx context.Context, guildID, key string) (*entities.ConfigOverride, error)

	// SetOverride adds or replaces an override.
	SetOverride(ctx context.Context, override *entities.ConfigOverride) error

	// ListOverrides lists the overrides of a guild.
	ListOverrides(ctx context.Context, guildID string) ([]*entities.ConfigOverride, error)
}

// closedAtFor returns the closed_at value that goes with a status.
func closedAtFor(status entities.Status, now custom.Datetime) *custom.Datetime {
	if !status.IsTerminal() {
		return nil
	}
	return &now
}

// activeStatuses are the statuses that count as open.
var activeStatuses = []entities.Status{entities.StatusOpen, entities.StatusInProgress}

// terminalStatuses are the statuses that end a ticket.
var terminalStatuses = []entities.Status{entities.StatusSolved, entities.StatusRejected, entities.StatusClosed}
