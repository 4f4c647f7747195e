package discord

import "sync"

// MessageRef points at a message the bot sent.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// LastMessages remembers the latest proposal message the bot sent to each
// user so a newer proposal can replace it in place. Safe for concurrent use.
type LastMessages struct {
	mu   sync.Mutex
	refs map[string]MessageRef
}

// NewLastMessages creates an empty tracker.
func NewLastMessages() *LastMessages {
	return &LastMessages{refs: make(map[string]MessageRef)}
}

// Remember records ref as the user's latest message.
func (l *LastMessages) Remember(userID string, ref MessageRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs[userID] = ref
}

// Get returns the user's latest message.
func (l *LastMessages) Get(userID string) (MessageRef, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref, ok := l.refs[userID]
	return ref, ok
}

// Forget drops the user's entry if it still points at messageID. An empty
// messageID drops the entry unconditionally.
func (l *LastMessages) Forget(userID, messageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ref, ok := l.refs[userID]; ok && (messageID == "" || ref.MessageID == messageID) {
		delete(l.refs, userID)
	}
}

// Len returns the number of tracked users.
func (l *LastMessages) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refs)
}
