package audio

import (
	"bytes"
	"io"
	"testing"
)

func TestDecodeVoice_EmptyPayload(t *testing.T) {
	if _, err := DecodeVoice(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestDecodeVoice_NotAnOggContainer(t *testing.T) {
	if _, err := DecodeVoice([]byte("definitely not ogg")); err == nil {
		t.Fatal("expected error for non-ogg payload")
	}
}

func TestEncodeWAV_ProducesRIFFHeader(t *testing.T) {
	// One second of silence, mono s16le.
	pcm := make([]byte, outputSampleRate*2)
	data, err := encodeWAV(pcm)
	if err != nil {
		t.Fatalf("encodeWAV failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("expected RIFF header, got %q", data[:4])
	}
	if !bytes.Contains(data[:64], []byte("WAVE")) {
		t.Fatal("expected WAVE marker in header")
	}
	if len(data) <= len(pcm) {
		t.Fatalf("wav output should include header beyond pcm: %d <= %d", len(data), len(pcm))
	}
}

func TestSeekBuffer_WriteSeekRewrite(t *testing.T) {
	b := &seekBuffer{}
	if _, err := b.Write([]byte("01234567")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Seek(2, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("XY")); err != nil {
		t.Fatal(err)
	}
	if string(b.data) != "01XY4567" {
		t.Fatalf("unexpected buffer: %q", b.data)
	}

	pos, err := b.Seek(0, io.SeekEnd)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 8 {
		t.Fatalf("unexpected end position: %d", pos)
	}
	if _, err := b.Seek(-100, io.SeekCurrent); err == nil {
		t.Fatal("expected error for negative seek")
	}
}
