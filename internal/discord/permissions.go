package discord

import (
	"slices"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// Access configures who may use the bot.
type Access struct {
	// OrderRoleID is required for placing orders in a guild. Empty allows
	// every member.
	OrderRoleID string

	// StaffRoleID is required for reports. Empty allows every member.
	StaffRoleID string

	// OrderChannelIDs restricts order messages to these channels. Empty
	// means every channel the bot can read.
	OrderChannelIDs []string

	// AllowDMs lets users order through direct messages.
	AllowDMs bool
}

// PermissionChecker applies [Access] to messages and interactions. The rules
// can be swapped at runtime with [PermissionChecker.SetAccess].
type PermissionChecker struct {
	access atomic.Pointer[Access]
}

// NewPermissionChecker creates a PermissionChecker.
func NewPermissionChecker(a Access) *PermissionChecker {
	p := &PermissionChecker{}
	p.SetAccess(a)
	return p
}

// SetAccess replaces the rules for subsequent checks.
func (p *PermissionChecker) SetAccess(a Access) {
	a.OrderChannelIDs = slices.Clone(a.OrderChannelIDs)
	p.access.Store(&a)
}

// CanOrderMessage reports whether a chat message should be treated as an
// order. Messages by bots are never orders.
func (p *PermissionChecker) CanOrderMessage(msg *discordgo.MessageCreate) bool {
	if msg.Author == nil || msg.Author.Bot {
		return false
	}
	a := p.access.Load()
	if msg.GuildID == "" {
		return a.AllowDMs
	}
	if len(a.OrderChannelIDs) > 0 && !slices.Contains(a.OrderChannelIDs, msg.ChannelID) {
		return false
	}
	return hasRole(msg.Member, a.OrderRoleID)
}

// CanOrder reports whether the interaction author may order and manage
// their own orders.
func (p *PermissionChecker) CanOrder(i *discordgo.InteractionCreate) bool {
	a := p.access.Load()
	if i.GuildID == "" {
		return a.AllowDMs
	}
	return hasRole(i.Member, a.OrderRoleID)
}

// IsStaff reports whether the interaction author has the staff role.
// Interactions outside a guild never count as staff unless no staff role is
// configured.
func (p *PermissionChecker) IsStaff(i *discordgo.InteractionCreate) bool {
	a := p.access.Load()
	if a.StaffRoleID == "" {
		return true
	}
	return hasRole(i.Member, a.StaffRoleID)
}

func hasRole(m *discordgo.Member, roleID string) bool {
	if roleID == "" {
		return true
	}
	if m == nil {
		return false
	}
	return slices.Contains(m.Roles, roleID)
}
