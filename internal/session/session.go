// Package session owns one chat exchange end to end: it serializes work per
// chat, assembles the prompt from durable history, routes the message to a
// model tier, calls the completion gateway, and appends both sides of the
// exchange back to history.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fluffle-labs/rabby/internal/control"
	"github.com/fluffle-labs/rabby/internal/db"
	"github.com/fluffle-labs/rabby/internal/history"
	"github.com/fluffle-labs/rabby/internal/router"
)

// CompletionGateway is the boundary to the remote language model.
type CompletionGateway interface {
	Complete(ctx context.Context, model string, turns []history.Turn) (string, error)
}

// Manager produces one outbound answer per inbound (chat, text) pair.
type Manager struct {
	History *history.Store
	Gateway CompletionGateway
	Router  *router.Selector

	// Persona is prepended to every request as a system turn and never
	// persisted, so identity text cannot drift through history mutation.
	Persona string

	// HistoryWindow bounds how many persisted turns are replayed into a
	// prompt. 0 replays the full conversation.
	HistoryWindow int

	Policy control.Policy

	// EventDB receives pipeline events when non-nil.
	EventDB *sql.DB

	locks *chatLocks
}

// NewManager wires a session manager around its collaborators.
func NewManager(store *history.Store, gateway CompletionGateway, selector *router.Selector, persona string) *Manager {
	return &Manager{
		History: store,
		Gateway: gateway,
		Router:  selector,
		Persona: persona,
		Policy:  control.DefaultPolicy(),
		locks:   newChatLocks(),
	}
}

// Exchange handles one inbound message: it appends the user turn, calls the
// gateway with persona + filtered history, persists the answer, and returns
// it. The chat's lock is held for the whole exchange so concurrent messages
// from the same chat cannot interleave their reads and appends.
func (m *Manager) Exchange(ctx context.Context, chatID int64, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	lock := m.locks.get(chatID)
	lock.Lock()
	defer lock.Unlock()

	exchangeID := uuid.NewString()
	rootID := m.logEvent(nil, db.EventMessageReceived, map[string]any{
		"chat_id":     chatID,
		"exchange_id": exchangeID,
		"words":       len(strings.Fields(text)),
	})

	turns, err := m.History.ReadTail(chatID, m.HistoryWindow)
	if err != nil {
		return "", err
	}

	// The user turn is durable before the remote call: a failed completion
	// may leave an unanswered question in history, never a lost one.
	if err := m.History.Append(chatID, history.RoleUser, text); err != nil {
		return "", err
	}

	request := make([]history.Turn, 0, len(turns)+2)
	request = append(request, history.Turn{Role: history.RoleSystem, Content: m.Persona})
	for _, t := range turns {
		if t.Role == history.RoleSystem {
			continue
		}
		request = append(request, t)
	}
	request = append(request, history.Turn{Role: history.RoleUser, Content: text})

	tier := m.Router.Select(text)
	model := m.Router.Model(tier)

	answer, err := m.complete(ctx, rootID, exchangeID, model, request)
	if err != nil {
		m.logEvent(rootID, db.EventTurnFailed, map[string]any{
			"exchange_id": exchangeID,
			"model_name":  model,
			"error":       truncate(err.Error(), 500),
		})
		var qc quotaClassifier
		if errors.As(err, &qc) && qc.QuotaExhausted() {
			return "", fmt.Errorf("%w: %s", ErrQuotaExhausted, truncate(err.Error(), 200))
		}
		return "", err
	}

	if err := m.History.Append(chatID, history.RoleAssistant, answer); err != nil {
		return "", err
	}
	m.logEvent(rootID, db.EventReplySent, map[string]any{
		"chat_id":     chatID,
		"exchange_id": exchangeID,
	})
	return answer, nil
}

// complete runs the gateway call under the policy's timeout, retrying
// transient failures with capped backoff. Quota exhaustion and context
// cancellation are not retried.
func (m *Manager) complete(ctx context.Context, parentID *int64, exchangeID, model string, request []history.Turn) (string, error) {
	attempt := 0
	for {
		attempt++
		m.logEvent(parentID, db.EventTurnStarted, map[string]any{
			"exchange_id": exchangeID,
			"model_name":  model,
			"attempt":     attempt,
		})

		callCtx := ctx
		var cancel context.CancelFunc
		if m.Policy.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, m.Policy.CallTimeout)
		}
		started := time.Now()
		answer, err := m.Gateway.Complete(callCtx, model, request)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			m.logEvent(parentID, db.EventTurnCompleted, map[string]any{
				"exchange_id": exchangeID,
				"model_name":  model,
				"latency_ms":  time.Since(started).Milliseconds(),
			})
			return answer, nil
		}

		var qc quotaClassifier
		if errors.As(err, &qc) && qc.QuotaExhausted() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", err
		}
		if !control.ShouldRetry(m.Policy, attempt) {
			return "", err
		}

		backoff := control.RetryBackoff(attempt)
		m.logEvent(parentID, db.EventRetryScheduled, map[string]any{
			"exchange_id":     exchangeID,
			"attempt":         attempt,
			"backoff_seconds": int(backoff.Seconds()),
			"error":           truncate(err.Error(), 300),
		})
		select {
		case <-ctx.Done():
			return "", err
		case <-time.After(backoff):
		}
	}
}

// Reset clears the chat's conversation. It succeeds for chats with no
// history; the chat lock is taken so a reset cannot interleave with an
// in-flight exchange.
func (m *Manager) Reset(ctx context.Context, chatID int64) error {
	lock := m.locks.get(chatID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.History.Clear(chatID); err != nil {
		return err
	}
	m.logEvent(nil, db.EventHistoryCleared, map[string]any{"chat_id": chatID})
	return nil
}

func (m *Manager) logEvent(parentID *int64, eventType string, payload map[string]any) *int64 {
	if m.EventDB == nil {
		return nil
	}
	id, err := db.LogEvent(m.EventDB, parentID, eventType, payload)
	if err != nil {
		log.Printf("[session] failed to log %s: %v", eventType, err)
		return nil
	}
	return &id
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
