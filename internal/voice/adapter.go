// Package voice turns an inbound voice note into a text exchange: fetch the
// audio by its transport handle, normalize it to WAV, transcribe it, and
// hand the transcript to the session manager as if the user had typed it.
package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluffle-labs/rabby/internal/audio"
)

// Failure classes of the pre-processing pipeline. Nothing is persisted when
// any of them occurs.
var (
	ErrAudioFetch    = errors.New("audio fetch failed")
	ErrAudioDecode   = errors.New("audio decode failed")
	ErrTranscription = errors.New("transcription unavailable")
)

// FileFetcher resolves an opaque audio handle into raw bytes.
type FileFetcher interface {
	FetchFile(fileID string) ([]byte, error)
}

// Transcriber converts provider-accepted audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, model string, wavData []byte) (string, error)
}

// Adapter is the audio-to-text front of the chat pipeline.
type Adapter struct {
	Fetcher     FileFetcher
	Transcriber Transcriber
	Model       string

	// Decode is swappable for tests; defaults to audio.DecodeVoice.
	Decode func(oggData []byte) ([]byte, error)
}

// NewAdapter wires a transcription adapter.
func NewAdapter(fetcher FileFetcher, transcriber Transcriber, model string) *Adapter {
	return &Adapter{
		Fetcher:     fetcher,
		Transcriber: transcriber,
		Model:       model,
		Decode:      audio.DecodeVoice,
	}
}

// Transcript fetches, decodes, and transcribes the voice note identified by
// fileID, returning the transcript text unchanged.
func (a *Adapter) Transcript(ctx context.Context, fileID string) (string, error) {
	data, err := a.Fetcher.FetchFile(fileID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAudioFetch, err)
	}

	wavData, err := a.Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAudioDecode, err)
	}

	text, err := a.Transcriber.Transcribe(ctx, a.Model, wavData)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return text, nil
}
