package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/orderbot/internal/discord"
	"github.com/MrWong99/orderbot/internal/ordering"
)

// MenuCommands implements /menu.
type MenuCommands struct {
	svc *ordering.Service
}

// NewMenuCommands creates a MenuCommands.
func NewMenuCommands(svc *ordering.Service) *MenuCommands {
	return &MenuCommands{svc: svc}
}

// Register adds /menu to the router.
func (mc *MenuCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("menu", &discordgo.ApplicationCommand{
		Name:        "menu",
		Description: "Показать меню и цены",
	}, mc.handleMenu)
}

func (mc *MenuCommands) handleMenu(m discord.Messenger, i *discordgo.InteractionCreate) {
	discord.RespondEphemeral(m, i, mc.svc.MenuText())
}
