package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/orderbot/pkg/provider/stt"
)

// maxVoiceSize caps downloaded voice notes. A minute of Opus voice is well
// under a megabyte.
const maxVoiceSize = 8 << 20

// ErrVoiceTooLarge is returned when a voice attachment exceeds maxVoiceSize.
var ErrVoiceTooLarge = errors.New("voice attachment too large")

// audioExtensions are accepted when Discord does not report a content type.
var audioExtensions = map[string]string{
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
}

// VoiceAttachment returns the first audio attachment of msg, or nil.
// Native voice messages and uploaded audio files both qualify.
func VoiceAttachment(msg *discordgo.Message) *discordgo.MessageAttachment {
	for _, a := range msg.Attachments {
		if a == nil {
			continue
		}
		if strings.HasPrefix(a.ContentType, "audio/") {
			return a
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(a.Filename))]; ok {
			return a
		}
		if msg.Flags&discordgo.MessageFlagsIsVoiceMessage != 0 {
			return a
		}
	}
	return nil
}

// contentType returns the attachment's MIME type, falling back to one
// derived from the file extension.
func contentType(a *discordgo.MessageAttachment) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	if ct, ok := audioExtensions[strings.ToLower(filepath.Ext(a.Filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// DownloadVoice fetches a voice attachment into memory. A nil client means
// http.DefaultClient.
func DownloadVoice(ctx context.Context, client *http.Client, attachment *discordgo.MessageAttachment) (stt.Audio, error) {
	if attachment == nil {
		return stt.Audio{}, errors.New("attachment is nil")
	}
	if attachment.Size > maxVoiceSize {
		return stt.Audio{}, fmt.Errorf("%w: %d bytes", ErrVoiceTooLarge, attachment.Size)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return stt.Audio{}, fmt.Errorf("create download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return stt.Audio{}, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Audio{}, fmt.Errorf("download attachment: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceSize+1))
	if err != nil {
		return stt.Audio{}, fmt.Errorf("read attachment: %w", err)
	}
	if len(data) > maxVoiceSize {
		return stt.Audio{}, ErrVoiceTooLarge
	}
	return stt.Audio{
		Data:        data,
		Filename:    attachment.Filename,
		ContentType: contentType(attachment),
	}, nil
}
