package commands

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/orderbot/internal/discord"
	"github.com/MrWong99/orderbot/internal/ordering"
)

// Button custom IDs. The owner's user ID is appended after a colon so a
// button only ever acts on the candidate of the user it was shown to.
const (
	orderPrefix        = "order:"
	actionConfirm      = "confirm"
	actionConfirmStaff = "confirm_staff"
	actionCancel       = "cancel"
)

const textVoiceDownloadFailed = "🗣 Не удалось получить голосовое сообщение, попробуйте ещё раз."

// OrderConfig holds the dependencies of [OrderCommands].
type OrderConfig struct {
	Service *ordering.Service
	Perms   *discord.PermissionChecker
	Tracker *discord.LastMessages

	// HTTPClient downloads voice attachments. Default: http.DefaultClient.
	HTTPClient *http.Client

	// NoticeTTL is how long transient notices stay in the channel. Zero
	// keeps them.
	NoticeTTL time.Duration

	// Timeout bounds the handling of one message. Default: 60s.
	Timeout time.Duration

	Logger *slog.Logger
}

// OrderCommands turns chat messages into order proposals and handles the
// confirm, confirm-as-staff and cancel buttons.
type OrderCommands struct {
	svc       *ordering.Service
	perms     *discord.PermissionChecker
	last      *discord.LastMessages
	client    *http.Client
	noticeTTL time.Duration
	timeout   time.Duration
	log       *slog.Logger

	// afterFunc schedules notice deletion; replaced in tests.
	afterFunc func(d time.Duration, f func())
}

// NewOrderCommands creates an OrderCommands.
func NewOrderCommands(cfg OrderConfig) *OrderCommands {
	oc := &OrderCommands{
		svc:       cfg.Service,
		perms:     cfg.Perms,
		last:      cfg.Tracker,
		client:    cfg.HTTPClient,
		noticeTTL: cfg.NoticeTTL,
		timeout:   cfg.Timeout,
		log:       cfg.Logger,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
	if oc.last == nil {
		oc.last = discord.NewLastMessages()
	}
	if oc.timeout <= 0 {
		oc.timeout = 60 * time.Second
	}
	if oc.log == nil {
		oc.log = slog.Default()
	}
	return oc
}

// Register wires the message handler and the order buttons.
func (oc *OrderCommands) Register(router *discord.CommandRouter) {
	router.RegisterMessageHandler(oc.handleMessage)
	router.RegisterComponentPrefix(orderPrefix, oc.handleButton)
}

// proposalButtons returns the confirm, confirm-as-staff and cancel buttons
// bound to ownerID.
func proposalButtons(ownerID string) []discordgo.MessageComponent {
	return rows([]discordgo.MessageComponent{
		button("✅ Подтвердить", orderPrefix+actionConfirm+":"+ownerID, discordgo.SuccessButton),
		button("👥 Для сотрудника", orderPrefix+actionConfirmStaff+":"+ownerID, discordgo.PrimaryButton),
		button("❌ Отмена", orderPrefix+actionCancel+":"+ownerID, discordgo.DangerButton),
	})
}

func (oc *OrderCommands) handleMessage(m discord.Messenger, msg *discordgo.MessageCreate) {
	if !oc.perms.CanOrderMessage(msg) {
		return
	}
	voice := VoiceAttachment(msg.Message)
	if voice == nil && strings.TrimSpace(msg.Content) == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), oc.timeout)
	defer cancel()
	user := userOf(msg.Author)

	var reply ordering.Reply
	if voice != nil {
		audio, err := DownloadVoice(ctx, oc.client, voice)
		if err != nil {
			oc.log.Warn("discord: voice download failed", "user_id", user.ID, "err", err)
			reply = ordering.Reply{Kind: ordering.ReplyFailed, Text: textVoiceDownloadFailed}
		} else {
			reply = oc.svc.HandleVoice(ctx, user, audio)
		}
	} else {
		reply = oc.svc.HandleText(ctx, user, msg.Content)
	}
	oc.deliver(m, msg.Message, user, reply)
}

// deliver posts reply in the message's channel. A proposal replaces the
// user's previous proposal in place when it is in the same channel; a
// transient notice is removed after the notice TTL.
func (oc *OrderCommands) deliver(m discord.Messenger, msg *discordgo.Message, user ordering.User, reply ordering.Reply) {
	if reply.Kind == ordering.ReplyProposal {
		buttons := proposalButtons(user.ID)
		if ref, ok := oc.last.Get(user.ID); ok && ref.ChannelID == msg.ChannelID {
			edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
			edit.Content = &reply.Text
			edit.Components = &buttons
			edit.AllowedMentions = noMentions
			_, err := m.ChannelMessageEditComplex(edit)
			if err == nil {
				return
			}
			oc.log.Debug("previous proposal not editable, sending a new one", "user_id", user.ID, "err", err)
		}
		sent, err := m.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
			Content:         reply.Text,
			Components:      buttons,
			Reference:       msg.SoftReference(),
			AllowedMentions: noMentions,
		})
		if err != nil {
			oc.log.Warn("discord: failed to send proposal", "user_id", user.ID, "err", err)
			return
		}
		oc.last.Remember(user.ID, discord.MessageRef{ChannelID: sent.ChannelID, MessageID: sent.ID})
		return
	}

	sent, err := m.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content:         reply.Text,
		Reference:       msg.SoftReference(),
		AllowedMentions: noMentions,
	})
	if err != nil {
		oc.log.Warn("discord: failed to send reply", "user_id", user.ID, "err", err)
		return
	}
	if reply.Transient() && oc.noticeTTL > 0 {
		oc.afterFunc(oc.noticeTTL, func() {
			if err := m.ChannelMessageDelete(sent.ChannelID, sent.ID); err != nil {
				oc.log.Debug("discord: failed to delete notice", "err", err)
			}
		})
	}
}

func (oc *OrderCommands) handleButton(m discord.Messenger, i *discordgo.InteractionCreate) {
	action, owner, ok := strings.Cut(strings.TrimPrefix(i.MessageComponentData().CustomID, orderPrefix), ":")
	if !ok {
		discord.RespondEphemeral(m, i, "Эта кнопка больше не действует.")
		return
	}
	user := interactionUser(i)
	if user.ID != owner {
		discord.RespondEphemeral(m, i, textNotYourOrder)
		return
	}
	if !oc.perms.CanOrder(i) {
		discord.RespondEphemeral(m, i, textNoAccess)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), oc.timeout)
	defer cancel()

	switch action {
	case actionConfirm, actionConfirmStaff:
		// Persisting may retry and notify staff; acknowledge first so the
		// interaction does not expire.
		discord.DeferUpdate(m, i)
		reply := oc.svc.Confirm(ctx, user, action == actionConfirmStaff)
		oc.forget(user, i)
		discord.EditResponse(m, i, reply.Text, nil)
	case actionCancel:
		reply := oc.svc.Cancel(ctx, user)
		oc.forget(user, i)
		discord.UpdateMessage(m, i, reply.Text, nil)
	default:
		discord.RespondEphemeral(m, i, "Эта кнопка больше не действует.")
	}
}

func (oc *OrderCommands) forget(user ordering.User, i *discordgo.InteractionCreate) {
	if i.Message != nil {
		oc.last.Forget(user.ID, i.Message.ID)
	}
}
