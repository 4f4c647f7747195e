// Package mock provides a recording Discord messenger for handler tests.
package mock

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Sent is one message posted with ChannelMessageSendComplex.
type Sent struct {
	ChannelID string
	Message   *discordgo.MessageSend
}

// Messenger records every call and returns stub messages. It is safe for
// concurrent use.
type Messenger struct {
	mu sync.Mutex

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// ResponseEdits records all InteractionResponseEdit calls.
	ResponseEdits []*discordgo.WebhookEdit

	// FollowUps records all FollowupMessageCreate calls.
	FollowUps []*discordgo.WebhookParams

	// Sent records all ChannelMessageSendComplex calls.
	Sent []Sent

	// Edits records all ChannelMessageEditComplex calls.
	Edits []*discordgo.MessageEdit

	// Deleted records "channelID/messageID" for every ChannelMessageDelete.
	Deleted []string

	// Err is returned by every call when non-nil.
	Err error

	// EditErr, when non-nil, is returned by ChannelMessageEditComplex only.
	EditErr error

	nextID int
}

// InteractionRespond records the response and returns the configured error.
func (m *Messenger) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// InteractionResponseEdit records the edit of a deferred response.
func (m *Messenger) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseEdits = append(m.ResponseEdits, edit)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: m.newIDLocked()}, nil
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *Messenger) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: m.newIDLocked()}, nil
}

// ChannelMessageSendComplex records the message and returns it with a fresh ID.
func (m *Messenger) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Sent{ChannelID: channelID, Message: data})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: m.newIDLocked(), ChannelID: channelID, Content: data.Content}, nil
}

// ChannelMessageEditComplex records the edit.
func (m *Messenger) ChannelMessageEditComplex(edit *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, edit)
	if m.EditErr != nil {
		return nil, m.EditErr
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: edit.ID, ChannelID: edit.Channel}, nil
}

// ChannelMessageDelete records the deletion.
func (m *Messenger) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, channelID+"/"+messageID)
	return m.Err
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Messenger) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastResponseEdit returns the most recent deferred-response edit, or nil.
func (m *Messenger) LastResponseEdit() *discordgo.WebhookEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ResponseEdits) == 0 {
		return nil
	}
	return m.ResponseEdits[len(m.ResponseEdits)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *Messenger) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.FollowUps) == 0 {
		return nil
	}
	return m.FollowUps[len(m.FollowUps)-1]
}

// LastSent returns the most recently sent channel message, or nil.
func (m *Messenger) LastSent() *discordgo.MessageSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1].Message
}

// Reset clears all recorded calls and errors.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = nil
	m.ResponseEdits = nil
	m.FollowUps = nil
	m.Sent = nil
	m.Edits = nil
	m.Deleted = nil
	m.Err = nil
	m.EditErr = nil
}

func (m *Messenger) newIDLocked() string {
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID)
}
