// Package commands implements the bot's Discord handlers: order messages and
// their confirmation buttons, /menu, /orders and /report.
package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/orderbot/internal/ordering"
)

const (
	textNoAccess      = "🔒 У вас нет доступа к заказам."
	textStaffOnly     = "🔒 Отчёты доступны только персоналу."
	textNotYourOrder  = "🔸 Это не ваш заказ."
	textReportsFailed = "⚠️ Не удалось сформировать отчёт. Попробуйте позже."
)

// interactionUser extracts the acting user from an interaction, handling
// both guild (Member) and DM (User) contexts.
func interactionUser(i *discordgo.InteractionCreate) ordering.User {
	if i.Member != nil && i.Member.User != nil {
		return userOf(i.Member.User)
	}
	if i.User != nil {
		return userOf(i.User)
	}
	return ordering.User{}
}

func userOf(u *discordgo.User) ordering.User {
	return ordering.User{ID: u.ID, Name: u.Username}
}

// button builds a single button component.
func button(label, customID string, style discordgo.ButtonStyle) discordgo.Button {
	return discordgo.Button{Label: label, CustomID: customID, Style: style}
}

// rows wraps non-empty button groups into action rows.
func rows(groups ...[]discordgo.MessageComponent) []discordgo.MessageComponent {
	var out []discordgo.MessageComponent
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, discordgo.ActionsRow{Components: g})
		}
	}
	return out
}

// noMentions stops order texts from pinging anyone.
var noMentions = &discordgo.MessageAllowedMentions{}
