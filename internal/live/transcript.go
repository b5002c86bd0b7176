package live

import (
	"sync"

	"github.com/zara-labs/live-gateway/internal/session"
)

// TranscriptEntry is one coalesced utterance in the running transcript.
type TranscriptEntry struct {
	Role session.Role
	Text string
}

// TranscriptBuffer accumulates partial transcript fragments into a readable
// conversation log. Consecutive fragments from the same speaker extend the
// current entry; a speaker change starts a new one.
type TranscriptBuffer struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

// NewTranscriptBuffer creates an empty buffer.
func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{}
}

// Append merges one fragment and returns the index and current value of the
// entry it landed in, so subscribers can update in place.
func (b *TranscriptBuffer) Append(role session.Role, text string) (int, TranscriptEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.entries)
	if n > 0 && b.entries[n-1].Role == role {
		b.entries[n-1].Text += text
		return n - 1, b.entries[n-1]
	}

	b.entries = append(b.entries, TranscriptEntry{Role: role, Text: text})
	return n, b.entries[n]
}

// Entries returns a snapshot of the transcript so far.
func (b *TranscriptBuffer) Entries() []TranscriptEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TranscriptEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Reset clears the buffer for a fresh session.
func (b *TranscriptBuffer) Reset() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}
