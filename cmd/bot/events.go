package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/pkg/await"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

const activityTimeout = 10 * time.Second

// messageHandler feeds pending confirmations, tracks activity in ticket threads and runs text commands.
func (a *App) messageHandler(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}

	a.awaits.Deliver(await.Event{
		Kind:      await.KindMessage,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		UserID:    m.Author.ID,
		Bot:       m.Author.Bot,
		Content:   m.Content,
	})

	if m.Author.Bot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), activityTimeout)
	err := a.tickets.RecordActivity(ctx, m.ChannelID, m.Author.Bot)
	cancel()
	if err != nil {
		a.Warn("Error recording activity",
			slog.String(logging.KeyThread, m.ChannelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}

	cmd, args, ok := parseText(a.commands.commands, m.Content)
	if !ok {
		return
	}
	a.runText(m, cmd, args)
}

func (a *App) runText(m *discordgo.MessageCreate, cmd *command, args map[string]string) {
	l := a.With(slog.String(logging.KeyCommand, cmd.name), slog.String(logging.KeyGuild, m.GuildID))
	defer func() {
		if rec := recover(); rec != nil {
			l.Error("Panic in command",
				slog.String(logging.KeyError, fmt.Sprint(rec)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	inv := &invocation{
		cmd:       cmd,
		source:    sourceText,
		actor:     a.actor(ctx, m.GuildID, m.Author),
		guildID:   m.GuildID,
		channelID: m.ChannelID,
		inThread:  a.isThread(ctx, m.ChannelID),
		args:      args,
	}

	// Text replies cannot be hidden, so ephemeral replies are posted like any other.
	if err := replyText(a, m, a.commands.dispatch(ctx, inv)); err != nil {
		l.Error("Error replying to text command", slog.String(logging.KeyError, err.Error()))
	}
}

// reactionHandler feeds pending resolution prompts.
func (a *App) reactionHandler(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}

	bot := a.s.State.User != nil && r.UserID == a.s.State.User.ID
	if r.Member != nil && r.Member.User != nil {
		bot = bot || r.Member.User.Bot
	}

	a.awaits.Deliver(await.Event{
		Kind:      await.KindReaction,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Bot:       bot,
		Emoji:     r.Emoji.Name,
	})
}

// actor resolves the member behind an event.
func (a *App) actor(ctx context.Context, guildID string, u *discordgo.User) *platform.Member {
	m, err := a.plat.Member(ctx, guildID, u.ID)
	if err != nil {
		a.Warn("Error getting member",
			slog.String(logging.KeyGuild, guildID),
			slog.String(logging.KeyUser, u.ID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
	return actorFrom(m, guildID, u)
}

func (a *App) isThread(ctx context.Context, channelID string) bool {
	_, err := a.plat.Thread(ctx, channelID)
	return err == nil
}
