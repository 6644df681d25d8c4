// Package discord implements the ticket platform on a Discord session.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// threadArchiveMinutes is how long a quiet thread stays visible before Discord hides it.
	threadArchiveMinutes = 10080

	memberPageSize  = 1000
	messagePageSize = 100

	// historyLimit bounds transcript exports.
	historyLimit = 10000
)

var apiLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "discord_api_latency",
		Help: "Duration of Discord API calls",
	},
	[]string{"action"},
)

// Platform is a platform.Platform backed by a Discord session.
type Platform struct {
	l *slog.Logger
	s *discordgo.Session
}

// New creates a new Platform.
func New(l *slog.Logger, s *discordgo.Session) *Platform {
	return &Platform{
		l: l.With(slog.String("component", "discord")),
		s: s,
	}
}

var _ platform.Platform = (*Platform)(nil)

// call runs fn unless ctx is already done. discordgo calls do not take a context so cancellation is only
// checked before each request.
func call[T any](ctx context.Context, action string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	t := prometheus.NewTimer(apiLatency.WithLabelValues(action))
	defer t.ObserveDuration()

	v, err := fn()
	if err != nil {
		return zero, wrap(action, err)
	}
	return v, nil
}

func wrap(action string, err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("error %s: %w", action, platform.ErrNotFound)
	}
	return fmt.Errorf("error %s: %w", action, err)
}

func (p *Platform) CreateThread(ctx context.Context, parentID, name string, private bool, reason string) (*platform.Thread, error) {
	typ := discordgo.ChannelTypeGuildPublicThread
	if private {
		typ = discordgo.ChannelTypeGuildPrivateThread
	}

	ch, err := call(ctx, "creating thread", func() (*discordgo.Channel, error) {
		return p.s.ThreadStartComplex(parentID, &discordgo.ThreadStart{
			Name:                name,
			AutoArchiveDuration: threadArchiveMinutes,
			Type:                typ,
			Invitable:           false,
		})
	})
	if err != nil {
		return nil, err
	}

	p.l.Debug("Thread created",
		slog.String(logging.KeyThread, ch.ID),
		slog.String("parent_id", parentID),
		slog.String("reason", reason),
	)
	return toThread(ch), nil
}

func (p *Platform) Thread(ctx context.Context, threadID string) (*platform.Thread, error) {
	ch, err := call(ctx, "getting thread", func() (*discordgo.Channel, error) {
		if ch, err := p.s.State.Channel(threadID); err == nil {
			return ch, nil
		}
		return p.s.Channel(threadID)
	})
	if err != nil {
		return nil, err
	}
	if !ch.IsThread() {
		return nil, fmt.Errorf("channel %s is not a thread: %w", threadID, platform.ErrNotFound)
	}
	return toThread(ch), nil
}

func (p *Platform) EditThread(ctx context.Context, threadID string, edit platform.ThreadEdit) (*platform.Thread, error) {
	data := &discordgo.ChannelEdit{
		Locked:   edit.Locked,
		Archived: edit.Archived,
	}
	if edit.Name != nil {
		data.Name = *edit.Name
	}

	// An archived thread only accepts the edit that unarchives it, so unarchive before renaming.
	if edit.Archived != nil && !*edit.Archived && edit.Name != nil {
		if _, err := call(ctx, "unarchiving thread", func() (*discordgo.Channel, error) {
			return p.s.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Archived: edit.Archived})
		}); err != nil {
			return nil, err
		}
	}

	ch, err := call(ctx, "editing thread", func() (*discordgo.Channel, error) {
		return p.s.ChannelEditComplex(threadID, data)
	})
	if err != nil {
		return nil, err
	}
	return toThread(ch), nil
}

func (p *Platform) AddThreadMember(ctx context.Context, threadID, userID string) error {
	_, err := call(ctx, "adding thread member", func() (struct{}, error) {
		return struct{}{}, p.s.ThreadMemberAdd(threadID, userID)
	})
	return err
}

func (p *Platform) RemoveThreadMember(ctx context.Context, threadID, userID string) error {
	_, err := call(ctx, "removing thread member", func() (struct{}, error) {
		return struct{}{}, p.s.ThreadMemberRemove(threadID, userID)
	})
	return err
}

// ThreadMembers lists the thread's members. Discord only returns ids for thread members, so each one is
// resolved against the guild to get its roles.
func (p *Platform) ThreadMembers(ctx context.Context, guildID, threadID string) ([]*platform.Member, error) {
	tms, err := call(ctx, "listing thread members", func() ([]*discordgo.ThreadMember, error) {
		return p.s.ThreadMembers(threadID)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tms))
	for _, tm := range tms {
		ids = append(ids, tm.UserID)
	}
	return resolveMembers(guildID, ids, func(id string) (*platform.Member, error) {
		return p.Member(ctx, guildID, id)
	})
}

// resolveMembers looks up each id. Users that have left the guild are kept as bare members so they can
// still be removed from the thread.
func resolveMembers(guildID string, ids []string, lookup func(id string) (*platform.Member, error)) ([]*platform.Member, error) {
	members := make([]*platform.Member, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		m, err := lookup(id)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			members = append(members, &platform.Member{ID: id, GuildID: guildID})
		case err != nil:
			return nil, fmt.Errorf("error resolving thread member %s: %w", id, err)
		default:
			members = append(members, m)
		}
	}
	return members, nil
}

func (p *Platform) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	m, err := call(ctx, "getting member", func() (*discordgo.Member, error) {
		if m, err := p.s.State.Member(guildID, userID); err == nil {
			return m, nil
		}
		return p.s.GuildMember(guildID, userID)
	})
	if err != nil {
		return nil, err
	}

	g, err := p.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return toMember(g, m), nil
}

func (p *Platform) RoleMembers(ctx context.Context, guildID string, roleIDs []string) ([]*platform.Member, error) {
	g, err := p.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(roleIDs))
	for _, r := range roleIDs {
		wanted[r] = true
	}

	members := make([]*platform.Member, 0)
	after := ""
	for {
		page, err := call(ctx, "listing members", func() ([]*discordgo.Member, error) {
			return p.s.GuildMembers(guildID, after, memberPageSize)
		})
		if err != nil {
			return nil, err
		}

		for _, m := range page {
			for _, r := range m.Roles {
				if wanted[r] {
					members = append(members, toMember(g, m))
					break
				}
			}
		}

		if len(page) < memberPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (p *Platform) Send(ctx context.Context, channelID string, msg *platform.Outgoing) (*platform.Message, error) {
	m, err := call(ctx, "sending message", func() (*discordgo.Message, error) {
		return p.s.ChannelMessageSendComplex(channelID, toMessageSend(msg))
	})
	if err != nil {
		return nil, err
	}
	return toMessage(m), nil
}

func (p *Platform) SendDirect(ctx context.Context, userID string, msg *platform.Outgoing) error {
	ch, err := call(ctx, "opening direct message", func() (*discordgo.Channel, error) {
		return p.s.UserChannelCreate(userID)
	})
	if err != nil {
		return err
	}

	_, err = p.Send(ctx, ch.ID, msg)
	return err
}

func (p *Platform) React(ctx context.Context, channelID, messageID, emoji string) error {
	_, err := call(ctx, "adding reaction", func() (struct{}, error) {
		return struct{}{}, p.s.MessageReactionAdd(channelID, messageID, emoji)
	})
	return err
}

func (p *Platform) FirstMessage(ctx context.Context, channelID string) (*platform.Message, error) {
	msgs, err := call(ctx, "getting first message", func() ([]*discordgo.Message, error) {
		return p.s.ChannelMessages(channelID, 1, "", "0", "")
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("channel %s has no messages: %w", channelID, platform.ErrNotFound)
	}
	return toMessage(msgs[0]), nil
}

func (p *Platform) History(ctx context.Context, channelID string) ([]*platform.Message, error) {
	all := make([]*platform.Message, 0)
	before := ""
	for len(all) < historyLimit {
		page, err := call(ctx, "reading history", func() ([]*discordgo.Message, error) {
			return p.s.ChannelMessages(channelID, messagePageSize, before, "", "")
		})
		if err != nil {
			return nil, err
		}

		for _, m := range page {
			all = append(all, toMessage(m))
		}
		if len(page) < messagePageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	// Discord pages newest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// guild gets a guild from the state cache, falling back to the API.
func (p *Platform) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	return call(ctx, "getting guild", func() (*discordgo.Guild, error) {
		if g, err := p.s.State.Guild(guildID); err == nil {
			return g, nil
		}
		return p.s.Guild(guildID)
	})
}

func toThread(ch *discordgo.Channel) *platform.Thread {
	th := &platform.Thread{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		ParentID: ch.ParentID,
		Name:     ch.Name,
		Private:  ch.Type == discordgo.ChannelTypeGuildPrivateThread,
	}
	if ch.ThreadMetadata != nil {
		th.Locked = ch.ThreadMetadata.Locked
		th.Archived = ch.ThreadMetadata.Archived
	}
	return th
}

// toMember converts a guild member. The owner and holders of a role with the administrator permission
// are administrators.
func toMember(g *discordgo.Guild, m *discordgo.Member) *platform.Member {
	pm := &platform.Member{
		GuildID: g.ID,
		Roles:   m.Roles,
	}
	if m.User != nil {
		pm.ID = m.User.ID
		pm.DisplayName = m.User.Username
		pm.Bot = m.User.Bot
	}
	if m.Nick != "" {
		pm.DisplayName = m.Nick
	}

	pm.Administrator = pm.ID != "" && pm.ID == g.OwnerID
	if !pm.Administrator {
		held := make(map[string]bool, len(m.Roles)+1)
		held[g.ID] = true // @everyone
		for _, r := range m.Roles {
			held[r] = true
		}
		for _, r := range g.Roles {
			if held[r.ID] && r.Permissions&discordgo.PermissionAdministrator != 0 {
				pm.Administrator = true
				break
			}
		}
	}
	return pm
}

func toMessage(m *discordgo.Message) *platform.Message {
	pm := &platform.Message{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
		Attachments: make([]string, 0, len(m.Attachments)),
	}
	if m.Author != nil {
		pm.AuthorID = m.Author.ID
		pm.AuthorName = m.Author.Username
		pm.AuthorBot = m.Author.Bot
	}
	for _, a := range m.Attachments {
		pm.Attachments = append(pm.Attachments, a.URL)
	}
	return pm
}

func toMessageSend(msg *platform.Outgoing) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
			Roles: msg.MentionRoles,
		},
	}

	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{Embed(msg.Embed)}
	}

	for _, f := range msg.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return send
}

// Embed converts an embed to its Discord form.
func Embed(e *platform.Embed) *discordgo.MessageEmbed {
	me := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		me.Fields = append(me.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return me
}
