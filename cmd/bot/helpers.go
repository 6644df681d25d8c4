package main

import (
	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/ticketbot/pkg/messages"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/Jacobbrewer1/ticketbot/pkg/platform/discord"
)

func respondSlashError(a *App, i *discordgo.InteractionCreate) error {
	return respondSlashEphemeral(a, i, messages.ErrUserErrorProcessing)
}

func respondSlashEphemeral(a *App, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondSlash(a *App, i *discordgo.InteractionCreate, r *reply) error {
	data := &discordgo.InteractionResponseData{
		Content:         r.content,
		Embeds:          embedsOf(r),
		AllowedMentions: userMentionsOnly(),
	}
	if r.ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// deferSlash acknowledges an interaction that will be answered by editSlash.
func deferSlash(a *App, i *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

func editSlash(a *App, i *discordgo.InteractionCreate, r *reply) error {
	content := r.content
	embeds := embedsOf(r)
	_, err := a.Session().InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:         &content,
		Embeds:          &embeds,
		AllowedMentions: userMentionsOnly(),
	})
	return err
}

// replyText answers a text command in the channel it was used in.
func replyText(a *App, m *discordgo.MessageCreate, r *reply) error {
	msg := &discordgo.MessageSend{
		Content:         r.content,
		Embeds:          embedsOf(r),
		AllowedMentions: userMentionsOnly(),
		Reference:       m.Reference(),
	}
	_, err := a.Session().ChannelMessageSendComplex(m.ChannelID, msg)
	return err
}

func embedsOf(r *reply) []*discordgo.MessageEmbed {
	if r.embed == nil {
		return []*discordgo.MessageEmbed{}
	}
	return []*discordgo.MessageEmbed{discord.Embed(r.embed)}
}

func userMentionsOnly() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
	}
}

// actorFrom builds the actor of an event from the member lookup, falling back to the bare user when the lookup
// fails so that permission checks deny rather than error.
func actorFrom(m *platform.Member, guildID string, u *discordgo.User) *platform.Member {
	if m != nil {
		return m
	}
	return &platform.Member{
		ID:          u.ID,
		GuildID:     guildID,
		DisplayName: u.Username,
		Bot:         u.Bot,
	}
}
