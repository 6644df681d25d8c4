package dataaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/custom"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
)

const (
	sqliteDalName  = "sqlite_store"
	sqliteDatabase = "tickets"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tickets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  guild_id TEXT NOT NULL,
  thread_id TEXT NOT NULL UNIQUE,
  creator_id TEXT NOT NULL,
  is_private INTEGER NOT NULL,
  status TEXT NOT NULL,
  title TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  claimed_by TEXT,
  last_user_message_at INTEGER,
  closed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tickets_guild ON tickets(guild_id);
CREATE INDEX IF NOT EXISTS idx_tickets_creator ON tickets(guild_id, creator_id);

CREATE TABLE IF NOT EXISTS config_overrides (
  guild_id TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (guild_id, key)
);

CREATE TABLE IF NOT EXISTS blacklist (
  guild_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  reason TEXT,
  PRIMARY KEY (guild_id, user_id)
);
`

const ticketColumns = `id, guild_id, thread_id, creator_id, is_private, status, title, created_at, updated_at,
claimed_by, last_user_message_at, closed_at`

type sqliteStore struct {
	// l is the logger.
	l *slog.Logger

	// db is the database handle. It holds a single connection.
	db *sql.DB

	// mu serializes every call against the store.
	mu sync.Mutex

	// now returns the current time.
	now func() time.Time
}

// Option configures a store.
type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock sets the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		o.now = now
	}
}

func newOptions(opts []Option) *storeOptions {
	o := &storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewSQLiteStore creates a store on an open SQLite database and creates the schema.
func NewSQLiteStore(ctx context.Context, logger *slog.Logger, db *sql.DB, opts ...Option) (Store, error) {
	if db == nil {
		return nil, errors.New("sqlite database is nil")
	}

	l := logger.With(slog.String(logging.KeyDal, sqliteDalName))

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	o := newOptions(opts)
	return &sqliteStore{
		l:   l,
		db:  db,
		now: o.now,
	}, nil
}

func (s *sqliteStore) stamp() custom.Datetime {
	return custom.Datetime(s.now().UTC().Truncate(time.Second))
}

func (s *sqliteStore) begin(query string) func() {
	s.mu.Lock()
	done := monitoring.Observe(DriverSQLite, query, sqliteDatabase, "tickets")
	return func() {
		done()
		s.mu.Unlock()
	}
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	defer s.begin("ping")()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("error pinging sqlite: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *sqliteStore) CreateTicket(ctx context.Context, ticket *entities.Ticket) (*entities.Ticket, bool, error) {
	defer s.begin("create_ticket")()

	now := s.stamp()
	status := ticket.Status
	if status == "" {
		status = entities.StatusOpen
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO tickets
		(guild_id, thread_id, creator_id, is_private, status, title, created_at, updated_at, last_user_message_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO NOTHING`,
		ticket.GuildID, ticket.ThreadID, ticket.CreatorID, ticket.IsPrivate, string(status), ticket.Title, now, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("error inserting ticket: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("error reading affected rows: %w", err)
	}

	got, err := s.getTicket(ctx, ticket.ThreadID)
	if err != nil {
		return nil, false, err
	}
	return got, n > 0, nil
}

func (s *sqliteStore) GetTicketByThread(ctx context.Context, threadID string) (*entities.Ticket, error) {
	defer s.begin("get_ticket_by_thread")()
	return s.getTicket(ctx, threadID)
}

func (s *sqliteStore) getTicket(ctx context.Context, threadID string) (*entities.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE thread_id = ?`, threadID)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return t, nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, threadID string, status entities.Status) error {
	defer s.begin("update_status")()
	return s.setStatus(ctx, threadID, status)
}

func (s *sqliteStore) CloseTicket(ctx context.Context, threadID string, status entities.Status) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	defer s.begin("close_ticket")()
	return s.setStatus(ctx, threadID, status)
}

func (s *sqliteStore) setStatus(ctx context.Context, threadID string, status entities.Status) error {
	now := s.stamp()
	return s.exec(ctx, `UPDATE tickets SET status = ?, closed_at = ?, updated_at = ? WHERE thread_id = ?`,
		string(status), closedAtFor(status, now), now, threadID)
}

func (s *sqliteStore) SetClaim(ctx context.Context, threadID string, memberID string) error {
	defer s.begin("set_claim")()

	var claimedBy sql.NullString
	if memberID != "" {
		claimedBy = sql.NullString{String: memberID, Valid: true}
	}
	return s.exec(ctx, `UPDATE tickets SET claimed_by = ?, updated_at = ? WHERE thread_id = ?`, claimedBy, s.stamp(), threadID)
}

func (s *sqliteStore) SetPrivate(ctx context.Context, threadID string) error {
	defer s.begin("set_private")()
	return s.exec(ctx, `UPDATE tickets SET is_private = 1, updated_at = ? WHERE thread_id = ?`, s.stamp(), threadID)
}

func (s *sqliteStore) UpdateLastUserMessage(ctx context.Context, threadID string) error {
	defer s.begin("update_last_user_message")()
	now := s.stamp()
	return s.exec(ctx, `UPDATE tickets SET last_user_message_at = ?, updated_at = ? WHERE thread_id = ?`, now, now, threadID)
}

func (s *sqliteStore) DeleteTicket(ctx context.Context, threadID string) error {
	defer s.begin("delete_ticket")()
	return s.exec(ctx, `DELETE FROM tickets WHERE thread_id = ?`, threadID)
}

// exec runs a statement that must touch exactly one ticket.
func (s *sqliteStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListOpenByCreator(ctx context.Context, guildID, userID string) ([]*entities.Ticket, error) {
	defer s.begin("list_open_by_creator")()
	return s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE guild_id = ? AND creator_id = ? AND status IN (?, ?) ORDER BY id DESC`,
		guildID, userID, entities.StatusOpen, entities.StatusInProgress)
}

func (s *sqliteStore) ListOpen(ctx context.Context, guildID string) ([]*entities.Ticket, error) {
	defer s.begin("list_open")()
	return s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE guild_id = ? AND status IN (?, ?) ORDER BY id`,
		guildID, entities.StatusOpen, entities.StatusInProgress)
}

func (s *sqliteStore) ListStale(ctx context.Context, guildID string, private bool, olderThan time.Time) ([]*entities.Ticket, error) {
	defer s.begin("list_stale")()
	return s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE guild_id = ? AND is_private = ? AND status IN (?, ?) AND last_user_message_at < ? ORDER BY id`,
		guildID, private, entities.StatusOpen, entities.StatusInProgress, olderThan.Unix())
}

func (s *sqliteStore) ListPurgeCandidates(ctx context.Context, guildID string, olderThan time.Time) ([]*entities.Ticket, error) {
	defer s.begin("list_purge_candidates")()
	return s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE guild_id = ? AND status IN (?, ?, ?) AND closed_at < ? ORDER BY id`,
		guildID, entities.StatusSolved, entities.StatusRejected, entities.StatusClosed, olderThan.Unix())
}

func (s *sqliteStore) queryTickets(ctx context.Context, query string, args ...any) ([]*entities.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*entities.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *sqliteStore) ListRecentTitles(ctx context.Context, guildID string, limit int) ([]string, error) {
	defer s.begin("list_recent_titles")()

	rows, err := s.db.QueryContext(ctx, `SELECT title FROM tickets WHERE guild_id = ? ORDER BY id DESC LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing titles: %w", err)
	}
	defer rows.Close()

	titles := make([]string, 0, limit)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("error scanning title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func (s *sqliteStore) CountByStatus(ctx context.Context, guildID string) ([]entities.StatusCount, error) {
	defer s.begin("count_by_status")()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tickets WHERE guild_id = ? GROUP BY status ORDER BY status`, guildID)
	if err != nil {
		return nil, fmt.Errorf("error counting tickets: %w", err)
	}
	defer rows.Close()

	counts := make([]entities.StatusCount, 0, len(entities.Statuses))
	for rows.Next() {
		var c entities.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("error scanning count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *sqliteStore) CountTotal(ctx context.Context, guildID string) (int64, error) {
	defer s.begin("count_total")()
	return s.count(ctx, `SELECT COUNT(*) FROM tickets WHERE guild_id = ?`, guildID)
}

func (s *sqliteStore) CountCreatedSince(ctx context.Context, guildID string, since time.Time) (int64, error) {
	defer s.begin("count_created_since")()
	return s.count(ctx, `SELECT COUNT(*) FROM tickets WHERE guild_id = ? AND created_at > ?`, guildID, since.Unix())
}

func (s *sqliteStore) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting tickets: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) AddBlacklist(ctx context.Context, entry *entities.BlacklistEntry) error {
	defer s.begin("add_blacklist")()

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO blacklist (guild_id, user_id, reason) VALUES (?, ?, ?)`,
		entry.GuildID, entry.UserID, entry.Reason)
	if err != nil {
		return fmt.Errorf("error adding blacklist entry: %w", err)
	}
	return nil
}

func (s *sqliteStore) IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error) {
	defer s.begin("is_blacklisted")()

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blacklist WHERE guild_id = ? AND user_id = ?`, guildID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("error checking blacklist: %w", err)
	}
	return true, nil
}

func (s *sqliteStore) RemoveBlacklist(ctx context.Context, guildID, userID string) error {
	defer s.begin("remove_blacklist")()

	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return fmt.Errorf("error removing blacklist entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListBlacklist(ctx context.Context, guildID string, limit int) ([]*entities.BlacklistEntry, error) {
	defer s.begin("list_blacklist")()

	rows, err := s.db.QueryContext(ctx, `SELECT guild_id, user_id, COALESCE(reason, '') FROM blacklist
		WHERE guild_id = ? ORDER BY user_id LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing blacklist: %w", err)
	}
	defer rows.Close()

	entries := make([]*entities.BlacklistEntry, 0)
	for rows.Next() {
		e := new(entities.BlacklistEntry)
		if err := rows.Scan(&e.GuildID, &e.UserID, &e.Reason); err != nil {
			return nil, fmt.Errorf("error scanning blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *sqliteStore) GetOverride(ctx context.Context, guildID, key string) (*entities.ConfigOverride, error) {
	defer s.begin("get_override")()

	o := &entities.ConfigOverride{GuildID: guildID, Key: key}
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config_overrides WHERE guild_id = ? AND key = ?`, guildID, key).Scan(&o.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting override: %w", err)
	}
	return o, nil
}

func (s *sqliteStore) SetOverride(ctx context.Context, override *entities.ConfigOverride) error {
	defer s.begin("set_override")()

	_, err := s.db.ExecContext(ctx, `INSERT INTO config_overrides (guild_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, key) DO UPDATE SET value = excluded.value`,
		override.GuildID, override.Key, override.Value)
	if err != nil {
		return fmt.Errorf("error setting override: %w", err)
	}
	return nil
}

func (s *sqliteStore) ListOverrides(ctx context.Context, guildID string) ([]*entities.ConfigOverride, error) {
	defer s.begin("list_overrides")()

	rows, err := s.db.QueryContext(ctx, `SELECT guild_id, key, value FROM config_overrides WHERE guild_id = ? ORDER BY key`, guildID)
	if err != nil {
		return nil, fmt.Errorf("error listing overrides: %w", err)
	}
	defer rows.Close()

	overrides := make([]*entities.ConfigOverride, 0)
	for rows.Next() {
		o := new(entities.ConfigOverride)
		if err := rows.Scan(&o.GuildID, &o.Key, &o.Value); err != nil {
			return nil, fmt.Errorf("error scanning override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (*entities.Ticket, error) {
	var (
		t         entities.Ticket
		status    string
		claimedBy sql.NullString
		lastMsg   custom.Datetime
		closedAt  custom.Datetime
	)

	err := row.Scan(&t.ID, &t.GuildID, &t.ThreadID, &t.CreatorID, &t.IsPrivate, &status, &t.Title,
		&t.CreatedAt, &t.UpdatedAt, &claimedBy, &lastMsg, &closedAt)
	if err != nil {
		return nil, err
	}

	t.Status = entities.Status(strings.TrimSpace(status))
	t.ClaimedBy = claimedBy.String
	if !lastMsg.IsZero() {
		t.LastUserMessageAt = &lastMsg
	}
	if !closedAt.IsZero() {
		t.ClosedAt = &closedAt
	}
	return &t, nil
}
