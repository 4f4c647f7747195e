package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// RespondEphemeral sends an ephemeral text response to an interaction.
func RespondEphemeral(m Messenger, i *discordgo.InteractionCreate, content string) {
	err := m.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to send ephemeral response", "err", err)
	}
}

// RespondComponents sends an ephemeral response with buttons.
func RespondComponents(m Messenger, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	err := m.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to send response", "err", err)
	}
}

// UpdateMessage replaces the content and buttons of the message a component
// belongs to. A nil components slice removes all buttons.
func UpdateMessage(m Messenger, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	err := m.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to update message", "err", err)
	}
}

// DeferReply sends a deferred ephemeral response (for long-running commands).
func DeferReply(m Messenger, i *discordgo.InteractionCreate) {
	err := m.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to defer reply", "err", err)
	}
}

// DeferUpdate acknowledges a component interaction; the message is edited
// later with a follow-up.
func DeferUpdate(m Messenger, i *discordgo.InteractionCreate) {
	err := m.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		slog.Warn("discord: failed to defer update", "err", err)
	}
}

// EditResponse replaces the content and buttons of the message behind a
// deferred interaction. A nil components slice removes all buttons.
func EditResponse(m Messenger, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := m.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	})
	if err != nil {
		slog.Warn("discord: failed to edit response", "err", err)
	}
}

// FollowUp sends an ephemeral follow-up message after a deferred response.
func FollowUp(m Messenger, i *discordgo.InteractionCreate, content string) {
	_, err := m.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		slog.Warn("discord: failed to send follow-up", "err", err)
	}
}

// FollowUpFiles sends an ephemeral follow-up carrying file attachments.
func FollowUpFiles(m Messenger, i *discordgo.InteractionCreate, content string, files []*discordgo.File) {
	_, err := m.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Files:   files,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		slog.Warn("discord: failed to send files", "err", err, "files", len(files))
	}
}
