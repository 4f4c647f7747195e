package discord

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc is the signature for slash command and component handlers.
type HandlerFunc func(m Messenger, i *discordgo.InteractionCreate)

// MessageHandlerFunc is the signature for plain chat message handlers.
type MessageHandlerFunc func(m Messenger, msg *discordgo.MessageCreate)

// commandEntry stores a command definition along with its handler.
type commandEntry struct {
	command *discordgo.ApplicationCommand
	handler HandlerFunc
}

// prefixEntry is a component handler matched by custom ID prefix.
type prefixEntry struct {
	prefix  string
	handler HandlerFunc
}

// CommandRouter dispatches Discord interactions and messages to registered
// handlers.
type CommandRouter struct {
	mu sync.RWMutex

	// commands is keyed by "command" or "command/subcommand".
	commands map[string]commandEntry

	// components is keyed by exact custom ID.
	components map[string]HandlerFunc

	// prefixes are tried longest first.
	prefixes []prefixEntry

	messages []MessageHandlerFunc
	log      *slog.Logger
}

// NewCommandRouter creates an empty router. A nil logger means slog.Default().
func NewCommandRouter(log *slog.Logger) *CommandRouter {
	if log == nil {
		log = slog.Default()
	}
	return &CommandRouter{
		commands:   make(map[string]commandEntry),
		components: make(map[string]HandlerFunc),
		log:        log,
	}
}

// RegisterCommand registers a handler for a slash command. The key format is
// "command" or "command/subcommand". The cmd definition is used when
// registering commands with Discord.
func (r *CommandRouter) RegisterCommand(key string, cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[key] = commandEntry{command: cmd, handler: handler}
}

// RegisterComponent registers a handler for a button with an exact custom ID.
func (r *CommandRouter) RegisterComponent(customID string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[customID] = handler
}

// RegisterComponentPrefix registers a handler for every button whose custom
// ID starts with prefix (e.g. "orders:del:" matches "orders:del:42"). When
// several prefixes match, the longest wins.
func (r *CommandRouter) RegisterComponentPrefix(prefix string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := 0
	for i < len(r.prefixes) && len(r.prefixes[i].prefix) >= len(prefix) {
		i++
	}
	r.prefixes = append(r.prefixes, prefixEntry{})
	copy(r.prefixes[i+1:], r.prefixes[i:])
	r.prefixes[i] = prefixEntry{prefix: prefix, handler: handler}
}

// RegisterMessageHandler adds a handler for chat messages. Handlers run in
// registration order.
func (r *CommandRouter) RegisterMessageHandler(handler MessageHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, handler)
}

// ApplicationCommands returns one definition per top-level command name,
// sorted by name, for publishing to Discord.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	byName := make(map[string]*discordgo.ApplicationCommand, len(r.commands))
	for _, e := range r.commands {
		if e.command != nil {
			byName[e.command.Name] = e.command
		}
	}
	r.mu.RUnlock()

	cmds := make([]*discordgo.ApplicationCommand, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		cmds = append(cmds, byName[name])
	}
	return cmds
}

// Handle dispatches an interaction to the appropriate handler.
func (r *CommandRouter) Handle(m Messenger, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleApplicationCommand(m, i)
	case discordgo.InteractionMessageComponent:
		r.handleComponent(m, i)
	default:
		r.log.Warn("discord: unhandled interaction type", "type", i.Type)
	}
}

// HandleMessage passes a chat message to every message handler.
func (r *CommandRouter) HandleMessage(m Messenger, msg *discordgo.MessageCreate) {
	r.mu.RLock()
	handlers := r.messages
	r.mu.RUnlock()
	for _, h := range handlers {
		h(m, msg)
	}
}

// interactionKey builds a router key from an ApplicationCommand interaction.
func interactionKey(data discordgo.ApplicationCommandInteractionData) string {
	key := data.Name
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		key += "/" + data.Options[0].Name
	}
	return key
}

func (r *CommandRouter) handleApplicationCommand(m Messenger, i *discordgo.InteractionCreate) {
	key := interactionKey(i.ApplicationCommandData())

	r.mu.RLock()
	entry, ok := r.commands[key]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("discord: unknown command", "key", key)
		RespondEphemeral(m, i, "Неизвестная команда.")
		return
	}
	entry.handler(m, i)
}

func (r *CommandRouter) handleComponent(m Messenger, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	r.mu.RLock()
	handler, ok := r.components[customID]
	if !ok {
		for _, p := range r.prefixes {
			if strings.HasPrefix(customID, p.prefix) {
				handler, ok = p.handler, true
				break
			}
		}
	}
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("discord: unknown component", "custom_id", customID)
		RespondEphemeral(m, i, "Эта кнопка больше не действует.")
		return
	}
	handler(m, i)
}
