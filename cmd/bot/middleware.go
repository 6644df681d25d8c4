package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/Jacobbrewer1/ticketbot/pkg/messages"
	"github.com/Jacobbrewer1/ticketbot/pkg/request"
	"github.com/gorilla/mux"
)

// commandTimeout bounds a single command, including any confirmation it waits for.
const commandTimeout = 5 * time.Minute

type Controller func(w http.ResponseWriter, r *http.Request)

func middlewareHttp(handler Controller, a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				request.Encode(a.Logger, cw, http.StatusInternalServerError, request.NewMessage("%s", request.ErrInternalServer))
			}
		}()

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				a.Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path
			}
		} else {
			path = r.URL.Path
		}

		defer func() {
			// Run after the handler, as the status code is not known until then.
			code := strconv.Itoa(cw.StatusCode())
			monitoring.HttpTotalRequests.WithLabelValues(path, r.Method, code).Inc()
			monitoring.HttpRequestDuration.WithLabelValues(path, r.Method, code).Observe(time.Since(now).Seconds())
		}()

		handler(cw, r)
	}
}

// interactionHandler is the handler for slash commands.
func (a *App) interactionHandler(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	name, opts := data.Name, data.Options
	if name == adminCmdName && len(opts) > 0 {
		name += " " + opts[0].Name
		opts = opts[0].Options
	}

	l := a.With(slog.String(logging.KeyCommand, name), slog.String(logging.KeyGuild, i.GuildID))
	l.Debug("Handling interaction")

	defer func() {
		if rec := recover(); rec != nil {
			l.Error("Panic in command",
				slog.String(logging.KeyError, fmt.Sprint(rec)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if i.Member == nil || i.Member.User == nil {
		if err := respondSlashEphemeral(a, i, "Use this command in a server."); err != nil {
			l.Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	cmd, ok := a.commands.commands[name]
	if !ok {
		l.Error("No command found")
		if err := respondSlashEphemeral(a, i, messages.ErrUnknownCommand); err != nil {
			l.Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	args := make(map[string]string, len(opts))
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionUser:
			args[o.Name] = o.UserValue(nil).ID
		case discordgo.ApplicationCommandOptionInteger:
			args[o.Name] = strconv.FormatInt(o.IntValue(), 10)
		default:
			args[o.Name] = o.StringValue()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	inv := &invocation{
		cmd:       cmd,
		source:    sourceSlash,
		guildID:   i.GuildID,
		channelID: i.ChannelID,
		inThread:  a.isThread(ctx, i.ChannelID),
		args:      args,
	}
	inv.actor = a.actor(ctx, i.GuildID, i.Member.User)

	if !cmd.slow {
		if err := respondSlash(a, i, a.commands.dispatch(ctx, inv)); err != nil {
			l.Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	// Private tickets are opened from the support channel, so the acknowledgement there is hidden.
	if err := deferSlash(a, i, i.ChannelID == a.cfg.SupportChannelId); err != nil {
		l.Error("Error deferring interaction", slog.String(logging.KeyError, err.Error()))
		return
	}
	if err := editSlash(a, i, a.commands.dispatch(ctx, inv)); err != nil {
		l.Error("Error editing interaction response", slog.String(logging.KeyError, err.Error()))
	}
}
