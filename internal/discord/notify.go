package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/orderbot/internal/ordering"
)

// StaffNotifier posts confirmed orders to the staff channel.
type StaffNotifier struct {
	messenger Messenger
	channelID string
}

var _ ordering.Notifier = (*StaffNotifier)(nil)

// NewStaffNotifier creates a StaffNotifier posting to channelID.
func NewStaffNotifier(m Messenger, channelID string) *StaffNotifier {
	return &StaffNotifier{messenger: m, channelID: channelID}
}

// NotifyOrder implements [ordering.Notifier].
func (n *StaffNotifier) NotifyOrder(ctx context.Context, notice ordering.Notice) error {
	if n.channelID == "" {
		return errors.New("discord: notify: no staff channel configured")
	}
	_, err := n.messenger.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Content:         ordering.NoticeText(notice),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: notify order %d: %w", notice.OrderID, err)
	}
	return nil
}
