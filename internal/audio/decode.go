// Package audio normalizes Telegram voice notes (OGG/Opus) into WAV, the
// one container every transcription provider accepts.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
)

// Decoded PCM from the opus decoder is mono 16-bit at 48 kHz.
const (
	outputSampleRate = 48000
	outputChannels   = 1
	outputBitDepth   = 16
	frameBytes       = 1920
)

var opusTagsMagic = []byte("OpusTags")

// DecodeVoice decodes an OGG/Opus payload and re-encodes the PCM as WAV.
func DecodeVoice(oggData []byte) ([]byte, error) {
	if len(oggData) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	ogg, _, err := oggreader.NewWith(bytes.NewReader(oggData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ogg container: %w", err)
	}

	decoder := opus.NewDecoder()
	frame := make([]byte, frameBytes)
	var pcm []byte
	for {
		segments, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ogg page: %w", err)
		}
		for _, segment := range segments {
			if len(segment) == 0 || bytes.HasPrefix(segment, opusTagsMagic) {
				continue
			}
			if _, _, err := decoder.Decode(segment, frame); err != nil {
				return nil, fmt.Errorf("failed to decode opus segment: %w", err)
			}
			pcm = append(pcm, frame...)
		}
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio payload contained no opus frames")
	}

	return encodeWAV(pcm)
}

func encodeWAV(pcm []byte) ([]byte, error) {
	samples := make([]int, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		samples = append(samples, int(int16(binary.LittleEndian.Uint16(pcm[i:i+2]))))
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, outputSampleRate, outputBitDepth, outputChannels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: outputChannels, SampleRate: outputSampleRate},
		Data:           samples,
		SourceBitDepth: outputBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}
	return out.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		b.data = append(b.data, make([]byte, need-len(b.data))...)
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position: %d", next)
	}
	b.pos = int(next)
	return next, nil
}
