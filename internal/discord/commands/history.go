package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/orderbot/internal/discord"
	"github.com/MrWong99/orderbot/internal/ordering"
)

// History button custom IDs:
//
//	orders:page:<page>
//	orders:del:<orderID>:<page>
//	orders:clear
//	orders:clear_yes
//	orders:close
const (
	historyPrefix   = "orders:"
	historyPage     = historyPrefix + "page:"
	historyDelete   = historyPrefix + "del:"
	historyClear    = historyPrefix + "clear"
	historyClearYes = historyPrefix + "clear_yes"
	historyClose    = historyPrefix + "close"
)

const textHistoryClosed = "✖ Закрыто."

// HistoryCommands implements /orders: a paged view of the user's own orders
// with per-order delete and a clear-today action.
type HistoryCommands struct {
	svc     *ordering.Service
	perms   *discord.PermissionChecker
	timeout time.Duration
}

// NewHistoryCommands creates a HistoryCommands.
func NewHistoryCommands(svc *ordering.Service, perms *discord.PermissionChecker) *HistoryCommands {
	return &HistoryCommands{svc: svc, perms: perms, timeout: 30 * time.Second}
}

// Register adds /orders and its buttons to the router.
func (hc *HistoryCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("orders", &discordgo.ApplicationCommand{
		Name:        "orders",
		Description: "Мои заказы",
	}, hc.handleOrders)
	router.RegisterComponentPrefix(historyPage, hc.handlePage)
	router.RegisterComponentPrefix(historyDelete, hc.handleDelete)
	router.RegisterComponent(historyClear, hc.handleClear)
	router.RegisterComponent(historyClearYes, hc.handleClearConfirmed)
	router.RegisterComponent(historyClose, hc.handleClose)
}

func (hc *HistoryCommands) handleOrders(m discord.Messenger, i *discordgo.InteractionCreate) {
	if !hc.perms.CanOrder(i) {
		discord.RespondEphemeral(m, i, textNoAccess)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	page := hc.svc.History(ctx, interactionUser(i), 0)
	discord.RespondComponents(m, i, page.Text, historyComponents(page))
}

func (hc *HistoryCommands) handlePage(m discord.Messenger, i *discordgo.InteractionCreate) {
	if !hc.perms.CanOrder(i) {
		discord.RespondEphemeral(m, i, textNoAccess)
		return
	}
	n, err := strconv.Atoi(strings.TrimPrefix(i.MessageComponentData().CustomID, historyPage))
	if err != nil {
		discord.RespondEphemeral(m, i, "Эта кнопка больше не действует.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	page := hc.svc.History(ctx, interactionUser(i), n)
	discord.UpdateMessage(m, i, page.Text, historyComponents(page))
}

func (hc *HistoryCommands) handleDelete(m discord.Messenger, i *discordgo.InteractionCreate) {
	if !hc.perms.CanOrder(i) {
		discord.RespondEphemeral(m, i, textNoAccess)
		return
	}
	idStr, pageStr, _ := strings.Cut(strings.TrimPrefix(i.MessageComponentData().CustomID, historyDelete), ":")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		discord.RespondEphemeral(m, i, "Эта кнопка больше не действует.")
		return
	}
	n, _ := strconv.Atoi(pageStr)

	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	user := interactionUser(i)
	reply := hc.svc.DeleteOrder(ctx, user, id)
	page := hc.svc.History(ctx, user, n)
	discord.UpdateMessage(m, i, reply.Text+"\n\n"+page.Text, historyComponents(page))
}

func (hc *HistoryCommands) handleClear(m discord.Messenger, i *discordgo.InteractionCreate) {
	if !hc.perms.CanOrder(i) {
		discord.RespondEphemeral(m, i, textNoAccess)
		return
	}
	discord.UpdateMessage(m, i, hc.svc.ClearTodayPrompt(), rows([]discordgo.MessageComponent{
		button("🧹 Да, удалить", historyClearYes, discordgo.DangerButton),
		button("↩ Назад", historyPage+"0", discordgo.SecondaryButton),
	}))
}

func (hc *HistoryCommands) handleClearConfirmed(m discord.Messenger, i *discordgo.InteractionCreate) {
	if !hc.perms.CanOrder(i) {
		discord.RespondEphemeral(m, i, textNoAccess)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	user := interactionUser(i)
	reply := hc.svc.ClearToday(ctx, user)
	page := hc.svc.History(ctx, user, 0)
	discord.UpdateMessage(m, i, reply.Text+"\n\n"+page.Text, historyComponents(page))
}

func (hc *HistoryCommands) handleClose(m discord.Messenger, i *discordgo.InteractionCreate) {
	discord.UpdateMessage(m, i, textHistoryClosed, nil)
}

// historyComponents builds the button rows for one history page: a delete
// button per order, navigation, and the clear and close controls.
func historyComponents(page ordering.HistoryPage) []discordgo.MessageComponent {
	var del []discordgo.MessageComponent
	for _, o := range page.Orders {
		del = append(del, button(
			fmt.Sprintf("🗑 #%d", o.ID),
			fmt.Sprintf("%s%d:%d", historyDelete, o.ID, page.Page),
			discordgo.SecondaryButton,
		))
	}

	var nav []discordgo.MessageComponent
	if page.HasPrev {
		nav = append(nav, button("⏮ В начало", historyPage+"0", discordgo.SecondaryButton))
	}
	if page.Page > 1 {
		nav = append(nav, button("◀ Назад", historyPage+strconv.Itoa(page.Page-1), discordgo.SecondaryButton))
	}
	if page.HasNext {
		nav = append(nav, button("⏭ Далее", historyPage+strconv.Itoa(page.Page+1), discordgo.SecondaryButton))
	}

	var controls []discordgo.MessageComponent
	if len(page.Orders) > 0 {
		controls = append(controls, button("🧹 Очистить за сегодня", historyClear, discordgo.DangerButton))
	}
	controls = append(controls, button("✖ Закрыть", historyClose, discordgo.SecondaryButton))

	return rows(del, nav, controls)
}
