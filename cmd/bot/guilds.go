package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
)

const guildSetupTimeout = 30 * time.Second

// guildJoinedHandler runs for every guild when the bot connects and whenever it joins a new one.
func (a *App) guildJoinedHandler(_ *discordgo.Session, g *discordgo.GuildCreate) {
	l := a.With(slog.String(logging.KeyGuild, g.ID))
	l.Info(fmt.Sprintf("Joined guild %s", g.Name))

	// Increment the total number of guilds.
	monitoring.TotalDiscordGuilds.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), guildSetupTimeout)
	defer cancel()

	n, err := a.admin.Restore(ctx, g.ID)
	if err != nil {
		l.Error("Error restoring config overrides", slog.String(logging.KeyError, err.Error()))
	} else if n > 0 {
		l.Info("Config overrides restored", slog.Int("count", n))
	}

	if err := a.registerSlashCommands(g.ID); err != nil {
		l.Error("Error registering slash commands", slog.String(logging.KeyError, err.Error()))
	}
}

func (a *App) guildLeaveHandler(_ *discordgo.Session, g *discordgo.GuildDelete) {
	a.Info(fmt.Sprintf("Left guild %s", g.ID))

	// Decrement the total number of guilds.
	monitoring.TotalDiscordGuilds.Dec()
}

// guildIDs lists the guilds the bot is currently in.
func (a *App) guildIDs() []string {
	a.s.State.RLock()
	defer a.s.State.RUnlock()

	ids := make([]string, 0, len(a.s.State.Guilds))
	for _, g := range a.s.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

func (a *App) registerSlashCommands(guildID string) error {
	if _, err := a.s.ApplicationCommandBulkOverwrite(a.cfg.ApplicationId, guildID, slashCommands(commandTable())); err != nil {
		return fmt.Errorf("error creating commands for guild %s: %w", guildID, err)
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	for _, id := range a.guildIDs() {
		if _, err := a.s.ApplicationCommandBulkOverwrite(a.cfg.ApplicationId, id, []*discordgo.ApplicationCommand{}); err != nil {
			return fmt.Errorf("error deleting commands for guild %s: %w", id, err)
		}
	}
	return nil
}

// slashCommands builds the slash command definitions. Admin commands become sub commands of /admin.
func slashCommands(commands []*command) []*discordgo.ApplicationCommand {
	adminCmd := &discordgo.ApplicationCommand{
		Name:        adminCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Staff only ticket administration.",
	}

	out := make([]*discordgo.ApplicationCommand, 0, len(commands))
	for _, c := range commands {
		opts := make([]*discordgo.ApplicationCommandOption, 0, len(c.options))
		for _, o := range c.options {
			opts = append(opts, slashOption(o))
		}

		if c.admin() {
			adminCmd.Options = append(adminCmd.Options, &discordgo.ApplicationCommandOption{
				Name:        c.subName(),
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: c.description,
				Options:     opts,
			})
			continue
		}

		out = append(out, &discordgo.ApplicationCommand{
			Name:        c.name,
			Type:        discordgo.ChatApplicationCommand,
			Description: c.description,
			Options:     opts,
		})
	}
	return append(out, adminCmd)
}

func slashOption(o option) *discordgo.ApplicationCommandOption {
	opt := &discordgo.ApplicationCommandOption{
		Name:        o.name,
		Type:        discordgo.ApplicationCommandOptionString,
		Description: o.description,
		Required:    o.required,
	}
	switch o.kind {
	case optionUser:
		opt.Type = discordgo.ApplicationCommandOptionUser
	case optionInteger:
		opt.Type = discordgo.ApplicationCommandOptionInteger
	}
	for _, c := range o.choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c})
	}
	return opt
}
