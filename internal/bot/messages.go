package bot

import (
	"errors"
	"fmt"

	"github.com/fluffle-labs/rabby/internal/history"
	"github.com/fluffle-labs/rabby/internal/session"
	"github.com/fluffle-labs/rabby/internal/voice"
)

const introText = "🐰 *Hi, I'm Rabby!* - your crypto-specialist AI assistant from *Fluffle Labs*.\n\n" +
	"💸 Ask me anything about crypto, trading, NFTs, DeFi, Solana, Ethereum, or blockchain.\n" +
	"🚫 I don't discuss non-crypto topics.\n" +
	"🧠 Use `/reset` if you want me to forget the chat."

const resetText = "🧠 Rabby's crypto memory has been reset!"

const (
	emptyMessageText  = "🐰 I need some words to work with. Send me a crypto question!"
	quotaText         = "⚠️ Rabby's wallet is out of gas (OpenAI credits). Please refill 🧠💳"
	audioFetchText    = "⚠️ I couldn't grab that voice note. Mind typing it instead?"
	audioDecodeText   = "⚠️ That voice note wouldn't decode. Mind typing it instead?"
	transcriptionText = "⚠️ My ears are offline right now. Please type your question."
	storageText       = "⚠️ Rabby's memory is unavailable right now. Please try again in a moment."
)

// userFacingMessage maps an internal failure to the text shown to the user.
// Unclassified failures are surfaced verbatim, matching the bot's original
// behavior; tightening this is a known hardening point.
func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return emptyMessageText
	case errors.Is(err, session.ErrQuotaExhausted):
		return quotaText
	case errors.Is(err, voice.ErrAudioFetch):
		return audioFetchText
	case errors.Is(err, voice.ErrAudioDecode):
		return audioDecodeText
	case errors.Is(err, voice.ErrTranscription):
		return transcriptionText
	case errors.Is(err, history.ErrStorageUnavailable):
		return storageText
	default:
		return fmt.Sprintf("⚠️ Error: %v", err)
	}
}
