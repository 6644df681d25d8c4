package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/custom"
	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDalName  = "mongo_store"
	mongoDatabase = "ticketbot"

	collTickets   = "tickets"
	collBlacklist = "blacklist"
	collOverrides = "config_overrides"
	collCounters  = "counters"
)

type mongoStore struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client

	// mu serializes every call against the store.
	mu sync.Mutex

	// now returns the current time.
	now func() time.Time
}

// NewMongoStore creates a store backed by MongoDB and ensures its indexes exist.
func NewMongoStore(ctx context.Context, logger *slog.Logger, client *mongo.Client, opts ...Option) (Store, error) {
	if client == nil {
		return nil, errors.New("mongo client is nil")
	}

	l := logger.With(slog.String(logging.KeyDal, mongoDalName))
	o := newOptions(opts)

	s := &mongoStore{
		l:      l,
		client: client,
		now:    o.now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[string]mongo.IndexModel{
		collTickets: {
			Keys:    bson.D{{Key: "thread_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		collBlacklist: {
			Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		collOverrides: {
			Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	for coll, idx := range indexes {
		if _, err := s.collection(coll).Indexes().CreateOne(ctx, idx); err != nil {
			return fmt.Errorf("error creating index on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *mongoStore) collection(name string) *mongo.Collection {
	return s.client.Database(mongoDatabase).Collection(name)
}

func (s *mongoStore) stamp() custom.Datetime {
	return custom.Datetime(s.now().UTC().Truncate(time.Second))
}

func (s *mongoStore) begin(query, collection string) func() {
	s.mu.Lock()
	done := monitoring.Observe(DriverMongo, query, mongoDatabase, collection)
	return func() {
		done()
		s.mu.Unlock()
	}
}

func (s *mongoStore) Ping(ctx context.Context) error {
	defer s.begin("ping", "-")()
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("error pinging mongo: %w", err)
	}
	return nil
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *mongoStore) CreateTicket(ctx context.Context, ticket *entities.Ticket) (*entities.Ticket, bool, error) {
	defer s.begin("create_ticket", collTickets)()

	existing, err := s.getTicket(ctx, ticket.ThreadID)
	if err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	id, err := s.nextID(ctx, collTickets)
	if err != nil {
		return nil, false, err
	}

	now := s.stamp()
	t := *ticket
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	t.LastUserMessageAt = &now
	t.ClosedAt = nil
	if t.Status == "" {
		t.Status = entities.StatusOpen
	}

	if _, err := s.collection(collTickets).InsertOne(ctx, &t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, err := s.getTicket(ctx, ticket.ThreadID)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("error inserting ticket: %w", err)
	}
	return &t, true, nil
}

// nextID increments and returns the sequence for a collection.
func (s *mongoStore) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.collection(collCounters).FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("error incrementing counter: %w", err)
	}
	return counter.Seq, nil
}

func (s *mongoStore) GetTicketByThread(ctx context.Context, threadID string) (*entities.Ticket, error) {
	defer s.begin("get_ticket_by_thread", collTickets)()
	return s.getTicket(ctx, threadID)
}

func (s *mongoStore) getTicket(ctx context.Context, threadID string) (*entities.Ticket, error) {
	raw, err := s.collection(collTickets).FindOne(ctx, bson.M{"thread_id": threadID}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return decodeTicket(raw)
}

// decodeTicket decodes a ticket document. Null or zero timestamps decode to nil so that ClosedAt is only set
// on terminal tickets.
func decodeTicket(raw bson.Raw) (*entities.Ticket, error) {
	t := new(entities.Ticket)
	if err := bson.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("error decoding ticket: %w", err)
	}
	if t.ClosedAt != nil && t.ClosedAt.IsZero() {
		t.ClosedAt = nil
	}
	if t.LastUserMessageAt != nil && t.LastUserMessageAt.IsZero() {
		t.LastUserMessageAt = nil
	}
	return t, nil
}

func (s *mongoStore) UpdateStatus(ctx context.Context, threadID string, status entities.Status) error {
	defer s.begin("update_status", collTickets)()
	return s.setStatus(ctx, threadID, status)
}

func (s *mongoStore) CloseTicket(ctx context.Context, threadID string, status entities.Status) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	defer s.begin("close_ticket", collTickets)()
	return s.setStatus(ctx, threadID, status)
}

func (s *mongoStore) setStatus(ctx context.Context, threadID string, status entities.Status) error {
	return s.updateTicket(ctx, threadID, statusUpdate(status, s.stamp()))
}

// statusUpdate sets closed_at when the status is terminal and clears it otherwise.
func statusUpdate(status entities.Status, now custom.Datetime) bson.M {
	set := bson.M{"status": status, "updated_at": now}
	if status.IsTerminal() {
		set["closed_at"] = now
		return bson.M{"$set": set}
	}
	return bson.M{"$set": set, "$unset": bson.M{"closed_at": ""}}
}

func (s *mongoStore) SetClaim(ctx context.Context, threadID string, memberID string) error {
	defer s.begin("set_claim", collTickets)()

	return s.updateTicket(ctx, threadID, claimUpdate(memberID, s.stamp()))
}

// claimUpdate removes claimed_by for an empty member.
func claimUpdate(memberID string, now custom.Datetime) bson.M {
	if memberID == "" {
		return bson.M{"$set": bson.M{"updated_at": now}, "$unset": bson.M{"claimed_by": ""}}
	}
	return bson.M{"$set": bson.M{"claimed_by": memberID, "updated_at": now}}
}

func (s *mongoStore) SetPrivate(ctx context.Context, threadID string) error {
	defer s.begin("set_private", collTickets)()
	return s.updateTicket(ctx, threadID, bson.M{"$set": bson.M{"is_private": true, "updated_at": s.stamp()}})
}

func (s *mongoStore) UpdateLastUserMessage(ctx context.Context, threadID string) error {
	defer s.begin("update_last_user_message", collTickets)()
	now := s.stamp()
	return s.updateTicket(ctx, threadID, bson.M{"$set": bson.M{"last_user_message_at": now, "updated_at": now}})
}

func (s *mongoStore) updateTicket(ctx context.Context, threadID string, update bson.M) error {
	res, err := s.collection(collTickets).UpdateOne(ctx, bson.M{"thread_id": threadID}, update)
	if err != nil {
		return fmt.Errorf("error updating ticket: %w", err)
	} else if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) DeleteTicket(ctx context.Context, threadID string) error {
	defer s.begin("delete_ticket", collTickets)()

	res, err := s.collection(collTickets).DeleteOne(ctx, bson.M{"thread_id": threadID})
	if err != nil {
		return fmt.Errorf("error deleting ticket: %w", err)
	} else if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) ListOpenByCreator(ctx context.Context, guildID, userID string) ([]*entities.Ticket, error) {
	defer s.begin("list_open_by_creator", collTickets)()
	return s.findTickets(ctx, bson.M{
		"guild_id":   guildID,
		"creator_id": userID,
		"status":     bson.M{"$in": activeStatuses},
	}, options.Find().SetSort(bson.D{{Key: "id", Value: -1}}))
}

func (s *mongoStore) ListOpen(ctx context.Context, guildID string) ([]*entities.Ticket, error) {
	defer s.begin("list_open", collTickets)()
	return s.findTickets(ctx, bson.M{
		"guild_id": guildID,
		"status":   bson.M{"$in": activeStatuses},
	}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
}

func (s *mongoStore) ListStale(ctx context.Context, guildID string, private bool, olderThan time.Time) ([]*entities.Ticket, error) {
	defer s.begin("list_stale", collTickets)()
	return s.findTickets(ctx, bson.M{
		"guild_id":             guildID,
		"is_private":           private,
		"status":               bson.M{"$in": activeStatuses},
		"last_user_message_at": bson.M{"$lt": olderThan.UTC()},
	}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
}

func (s *mongoStore) ListPurgeCandidates(ctx context.Context, guildID string, olderThan time.Time) ([]*entities.Ticket, error) {
	defer s.begin("list_purge_candidates", collTickets)()
	return s.findTickets(ctx, bson.M{
		"guild_id":  guildID,
		"status":    bson.M{"$in": terminalStatuses},
		"closed_at": bson.M{"$lt": olderThan.UTC()},
	}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
}

func (s *mongoStore) findTickets(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entities.Ticket, error) {
	cur, err := s.collection(collTickets).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}

	defer cur.Close(ctx)

	tickets := make([]*entities.Ticket, 0)
	for cur.Next(ctx) {
		t, err := decodeTicket(cur.Current)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}
	return tickets, nil
}

func (s *mongoStore) ListRecentTitles(ctx context.Context, guildID string, limit int) ([]string, error) {
	defer s.begin("list_recent_titles", collTickets)()

	opts := options.Find().
		SetSort(bson.D{{Key: "id", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"title": 1})

	cur, err := s.collection(collTickets).Find(ctx, bson.M{"guild_id": guildID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing titles: %w", err)
	}

	var docs []struct {
		Title string `bson:"title"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding titles: %w", err)
	}

	titles := make([]string, 0, len(docs))
	for _, d := range docs {
		titles = append(titles, d.Title)
	}
	return titles, nil
}

func (s *mongoStore) CountByStatus(ctx context.Context, guildID string) ([]entities.StatusCount, error) {
	defer s.begin("count_by_status", collTickets)()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "guild_id", Value: guildID}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cur, err := s.collection(collTickets).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error counting tickets: %w", err)
	}

	counts := make([]entities.StatusCount, 0, len(entities.Statuses))
	if err := cur.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("error decoding counts: %w", err)
	}
	return counts, nil
}

func (s *mongoStore) CountTotal(ctx context.Context, guildID string) (int64, error) {
	defer s.begin("count_total", collTickets)()
	return s.count(ctx, bson.M{"guild_id": guildID})
}

func (s *mongoStore) CountCreatedSince(ctx context.Context, guildID string, since time.Time) (int64, error) {
	defer s.begin("count_created_since", collTickets)()
	return s.count(ctx, bson.M{"guild_id": guildID, "created_at": bson.M{"$gt": since.UTC()}})
}

func (s *mongoStore) count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.collection(collTickets).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error counting tickets: %w", err)
	}
	return n, nil
}

func (s *mongoStore) AddBlacklist(ctx context.Context, entry *entities.BlacklistEntry) error {
	defer s.begin("add_blacklist", collBlacklist)()

	opts := options.Update().SetUpsert(true)
	_, err := s.collection(collBlacklist).UpdateOne(ctx,
		bson.M{"guild_id": entry.GuildID, "user_id": entry.UserID},
		bson.M{"$set": entry}, opts)
	if err != nil {
		return fmt.Errorf("error adding blacklist entry: %w", err)
	}
	return nil
}

func (s *mongoStore) IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error) {
	defer s.begin("is_blacklisted", collBlacklist)()

	n, err := s.collection(collBlacklist).CountDocuments(ctx, bson.M{"guild_id": guildID, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("error checking blacklist: %w", err)
	}
	return n > 0, nil
}

func (s *mongoStore) RemoveBlacklist(ctx context.Context, guildID, userID string) error {
	defer s.begin("remove_blacklist", collBlacklist)()

	res, err := s.collection(collBlacklist).DeleteOne(ctx, bson.M{"guild_id": guildID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("error removing blacklist entry: %w", err)
	} else if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) ListBlacklist(ctx context.Context, guildID string, limit int) ([]*entities.BlacklistEntry, error) {
	defer s.begin("list_blacklist", collBlacklist)()

	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}).SetLimit(int64(limit))
	cur, err := s.collection(collBlacklist).Find(ctx, bson.M{"guild_id": guildID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing blacklist: %w", err)
	}

	entries := make([]*entities.BlacklistEntry, 0)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding blacklist: %w", err)
	}
	return entries, nil
}

func (s *mongoStore) GetOverride(ctx context.Context, guildID, key string) (*entities.ConfigOverride, error) {
	defer s.begin("get_override", collOverrides)()

	o := new(entities.ConfigOverride)
	err := s.collection(collOverrides).FindOne(ctx, bson.M{"guild_id": guildID, "key": key}).Decode(o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting override: %w", err)
	}
	return o, nil
}

func (s *mongoStore) SetOverride(ctx context.Context, override *entities.ConfigOverride) error {
	defer s.begin("set_override", collOverrides)()

	opts := options.Update().SetUpsert(true)
	_, err := s.collection(collOverrides).UpdateOne(ctx,
		bson.M{"guild_id": override.GuildID, "key": override.Key},
		bson.M{"$set": override}, opts)
	if err != nil {
		return fmt.Errorf("error setting override: %w", err)
	}
	return nil
}

func (s *mongoStore) ListOverrides(ctx context.Context, guildID string) ([]*entities.ConfigOverride, error) {
	defer s.begin("list_overrides", collOverrides)()

	cur, err := s.collection(collOverrides).Find(ctx, bson.M{"guild_id": guildID}, options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing overrides: %w", err)
	}

	overrides := make([]*entities.ConfigOverride, 0)
	if err := cur.All(ctx, &overrides); err != nil {
		return nil, fmt.Errorf("error decoding overrides: %w", err)
	}
	return overrides, nil
}
