// Package bot is the transport-facing dispatcher: it long-polls Telegram for
// updates, routes commands, and fans each inbound message out to the session
// layer. Updates are handled concurrently; ordering per chat is enforced by
// the session manager, not here.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fluffle-labs/rabby/internal/control"
	"github.com/fluffle-labs/rabby/internal/db"
	"github.com/fluffle-labs/rabby/internal/session"
	"github.com/fluffle-labs/rabby/internal/telegram"
)

// Transport is the chat-transport boundary consumed by the dispatcher.
type Transport interface {
	GetUpdates(offset int64, timeout int) ([]telegram.Update, error)
	SendMessage(chatID int64, text string) error
	SendMarkdown(chatID int64, text string) error
	SendChatAction(chatID int64, action string) error
}

// Session handles one text exchange or a history reset.
type Session interface {
	Exchange(ctx context.Context, chatID int64, text string) (string, error)
	Reset(ctx context.Context, chatID int64) error
}

// Transcriber resolves a voice-note file handle into transcript text.
type Transcriber interface {
	Transcript(ctx context.Context, fileID string) (string, error)
}

// Dispatcher runs the update loop.
type Dispatcher struct {
	Transport Transport
	Session   Session
	Voice     Transcriber
	Circuit   *control.CircuitBreaker

	// EventDB receives pipeline events when non-nil.
	EventDB *sql.DB

	PollTimeout          int
	SleepSeconds         int
	DropPending          bool
	PendingWindowSeconds int64
	PendingMaxMessages   int

	inflight sync.WaitGroup
}

// Run polls for updates until ctx is canceled, spawning one goroutine per
// update. It returns after all in-flight handlers finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	offset := int64(0)
	if d.DropPending {
		bootstrapped, err := d.bootstrapOffset()
		if err != nil {
			log.Printf("[bot] bootstrap offset error: %v", err)
		} else {
			offset = bootstrapped
		}
	}

	defer d.inflight.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		prevState := d.Circuit.State()
		if !d.Circuit.Allow(time.Now()) {
			if !d.sleep(ctx) {
				return nil
			}
			continue
		}
		if prevState == control.CircuitOpen && d.Circuit.State() == control.CircuitHalfOpen {
			d.logEvent(db.EventCircuitHalfOpen, map[string]any{
				"error_class": d.Circuit.OpenedClass(),
			})
		}

		updates, err := d.Transport.GetUpdates(offset, d.PollTimeout)
		if err != nil {
			log.Printf("[bot] getUpdates error: %v", err)
			prevCircuit := d.Circuit.State()
			d.Circuit.RecordFailure("transport_api", time.Now())
			if prevCircuit != control.CircuitOpen && d.Circuit.State() == control.CircuitOpen {
				d.logEvent(db.EventCircuitOpened, map[string]any{
					"error_class":      "transport_api",
					"threshold":        d.Circuit.Threshold,
					"cooldown_seconds": int(d.Circuit.Cooldown.Seconds()),
				})
			}
			if !d.sleep(ctx) {
				return nil
			}
			continue
		}
		if d.Circuit.State() != control.CircuitClosed {
			d.Circuit.RecordSuccess()
			d.logEvent(db.EventCircuitClosed, map[string]any{"recovered": true})
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message == nil {
				continue
			}
			msg := update.Message
			d.inflight.Add(1)
			go func() {
				defer d.inflight.Done()
				d.handleMessage(ctx, msg)
			}()
		}

		if len(updates) == 0 {
			if !d.sleep(ctx) {
				return nil
			}
		}
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID

	if msg.Voice != nil {
		d.handleVoice(ctx, chatID, msg.Voice)
		return
	}
	if msg.Text == nil {
		return
	}

	text := strings.TrimSpace(*msg.Text)
	if cmd := command(text); cmd != "" {
		switch cmd {
		case "start":
			d.reply(chatID, func() error { return d.Transport.SendMarkdown(chatID, introText) })
		case "reset":
			if err := d.Session.Reset(ctx, chatID); err != nil {
				log.Printf("[bot] reset chat_id=%d: %v", chatID, err)
				d.reply(chatID, func() error { return d.Transport.SendMessage(chatID, userFacingMessage(err)) })
				return
			}
			d.reply(chatID, func() error { return d.Transport.SendMessage(chatID, resetText) })
		default:
			// Unrecognized commands never reach the model or history.
			log.Printf("[bot] ignoring unknown command /%s chat_id=%d", cmd, chatID)
		}
		return
	}

	d.exchange(ctx, chatID, text)
}

func (d *Dispatcher) handleVoice(ctx context.Context, chatID int64, v *telegram.Voice) {
	rootID := d.logEvent(db.EventVoiceReceived, map[string]any{
		"chat_id":          chatID,
		"duration_seconds": v.Duration,
	})

	d.notifyTyping(chatID)

	transcript, err := d.Voice.Transcript(ctx, v.FileID)
	if err != nil {
		log.Printf("[bot] voice chat_id=%d: %v", chatID, err)
		d.logChildEvent(rootID, db.EventVoiceFailed, map[string]any{
			"chat_id": chatID,
			"error":   truncate(err.Error(), 500),
		})
		d.reply(chatID, func() error { return d.Transport.SendMessage(chatID, userFacingMessage(err)) })
		return
	}
	d.logChildEvent(rootID, db.EventVoiceTranscribed, map[string]any{
		"chat_id": chatID,
		"words":   len(strings.Fields(transcript)),
	})

	d.reply(chatID, func() error {
		return d.Transport.SendMarkdown(chatID, fmt.Sprintf("🎙️ You said: _%s_", transcript))
	})

	d.exchange(ctx, chatID, transcript)
}

func (d *Dispatcher) exchange(ctx context.Context, chatID int64, text string) {
	d.notifyTyping(chatID)

	answer, err := d.Session.Exchange(ctx, chatID, text)
	if err != nil {
		if errors.Is(err, session.ErrEmptyMessage) {
			d.logEvent(db.EventMessageRejected, map[string]any{"chat_id": chatID})
		} else {
			log.Printf("[bot] exchange chat_id=%d: %v", chatID, err)
		}
		d.reply(chatID, func() error { return d.Transport.SendMessage(chatID, userFacingMessage(err)) })
		return
	}

	d.reply(chatID, func() error { return d.Transport.SendMessage(chatID, answer) })
}

// notifyTyping is best effort: it runs detached and may fail silently, it
// must never delay or fail the exchange.
func (d *Dispatcher) notifyTyping(chatID int64) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if err := d.Transport.SendChatAction(chatID, "typing"); err != nil {
			log.Printf("[bot] chat action chat_id=%d: %v", chatID, err)
		}
	}()
}

func (d *Dispatcher) reply(chatID int64, send func() error) {
	if err := send(); err != nil {
		log.Printf("[bot] send chat_id=%d: %v", chatID, err)
	}
}

// bootstrapOffset skips the pending backlog on first start, keeping at most
// PendingMaxMessages updates within the pending window.
func (d *Dispatcher) bootstrapOffset() (int64, error) {
	updates, err := d.Transport.GetUpdates(0, 0)
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	now := time.Now().Unix()
	cutoff := now - d.PendingWindowSeconds

	var inWindow []telegram.Update
	for _, u := range updates {
		if u.Message != nil && u.Message.Date >= cutoff {
			inWindow = append(inWindow, u)
		}
	}

	if len(inWindow) == 0 {
		return updates[len(updates)-1].UpdateID + 1, nil
	}

	// A non-positive cap keeps every in-window update.
	if d.PendingMaxMessages > 0 && len(inWindow) > d.PendingMaxMessages {
		inWindow = inWindow[len(inWindow)-d.PendingMaxMessages:]
	}

	return inWindow[0].UpdateID, nil
}

func (d *Dispatcher) sleep(ctx context.Context) bool {
	seconds := d.SleepSeconds
	if seconds <= 0 {
		seconds = 1
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(seconds) * time.Second):
		return true
	}
}

func (d *Dispatcher) logEvent(eventType string, payload map[string]any) *int64 {
	return d.logChildEvent(nil, eventType, payload)
}

func (d *Dispatcher) logChildEvent(parentID *int64, eventType string, payload map[string]any) *int64 {
	if d.EventDB == nil {
		return nil
	}
	id, err := db.LogEvent(d.EventDB, parentID, eventType, payload)
	if err != nil {
		log.Printf("[bot] failed to log %s: %v", eventType, err)
		return nil
	}
	return &id
}

func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
