package playback

import (
	"math"
	"sync"
	"testing"

	"github.com/zara-labs/live-gateway/internal/audio"
)

type recordingSink struct {
	mu      sync.Mutex
	writes  []float64
	buffers []*audio.Buffer
	flushes int
}

func (r *recordingSink) Write(buf *audio.Buffer, startAt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, startAt)
	r.buffers = append(r.buffers, buf)
}

func (r *recordingSink) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *recordingSink) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// monoBuffer builds a buffer with the given duration in seconds at 24kHz.
func monoBuffer(duration float64) *audio.Buffer {
	n := int(duration * 24000)
	return &audio.Buffer{Samples: make([]float32, n), SampleRate: 24000, Channels: 1}
}

func TestScheduler_GaplessStarts(t *testing.T) {
	clock := NewManualClock(10.0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	// Cursor starts at now (10.0), which is not behind, so the first chunk
	// goes exactly at the cursor and the rest chain back-to-back.
	start1 := s.Schedule(monoBuffer(0.5))
	start2 := s.Schedule(monoBuffer(0.25))
	start3 := s.Schedule(monoBuffer(1.0))

	if start1 != 10.0 {
		t.Errorf("Expected first start at 10.0, got %v", start1)
	}
	if start2 != start1+0.5 {
		t.Errorf("Expected start2 == start1 + d1, got %v want %v", start2, start1+0.5)
	}
	if start3 != start2+0.25 {
		t.Errorf("Expected start3 == start2 + d2, got %v want %v", start3, start2+0.25)
	}
	if got := s.NextStart(); got != start3+1.0 {
		t.Errorf("Expected cursor at %v, got %v", start3+1.0, got)
	}
}

func TestScheduler_LeadWhenCursorBehind(t *testing.T) {
	clock := NewManualClock(0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	clock.Advance(5.0) // cursor (0) now lags the clock (5)

	start := s.Schedule(monoBuffer(0.5))
	if math.Abs(start-(5.0+DefaultLead)) > 1e-9 {
		t.Errorf("Expected start at now+lead (%v), got %v", 5.0+DefaultLead, start)
	}
}

func TestScheduler_WritesInOrder(t *testing.T) {
	clock := NewManualClock(0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	b1 := monoBuffer(0.5)
	b2 := monoBuffer(0.5)
	s.Schedule(b1)
	s.Schedule(b2)

	clock.Advance(2.0)

	if len(sink.buffers) != 2 {
		t.Fatalf("Expected 2 writes, got %d", len(sink.buffers))
	}
	if sink.buffers[0] != b1 || sink.buffers[1] != b2 {
		t.Error("Expected buffers written in schedule order")
	}
	if sink.writes[1] < sink.writes[0] {
		t.Errorf("Expected non-decreasing start times, got %v", sink.writes)
	}
}

func TestScheduler_SpeakingLifecycle(t *testing.T) {
	clock := NewManualClock(0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	var transitions []bool
	s.SetSpeakingFunc(func(speaking bool) { transitions = append(transitions, speaking) })

	if s.IsSpeaking() {
		t.Fatal("Expected speaking false initially")
	}

	s.Schedule(monoBuffer(0.5))
	s.Schedule(monoBuffer(0.5))
	if !s.IsSpeaking() {
		t.Error("Expected speaking true after scheduling")
	}

	// Play everything out.
	clock.Advance(3.0)

	if s.IsSpeaking() {
		t.Error("Expected speaking false after all sources finished")
	}
	if s.ActiveSources() != 0 {
		t.Errorf("Expected empty active list, got %d", s.ActiveSources())
	}
	if len(transitions) != 2 || transitions[0] != true || transitions[1] != false {
		t.Errorf("Expected transitions [true false], got %v", transitions)
	}
}

func TestScheduler_SpeakingHeldUntilListEmpty(t *testing.T) {
	clock := NewManualClock(0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	s.Schedule(monoBuffer(0.5))
	s.Schedule(monoBuffer(2.0))

	// First source finishes, second still playing.
	clock.Advance(1.0)
	if !s.IsSpeaking() {
		t.Error("Expected speaking true while a source remains")
	}
	if s.ActiveSources() != 1 {
		t.Errorf("Expected 1 active source, got %d", s.ActiveSources())
	}
}

func TestScheduler_InterruptClearsTimeline(t *testing.T) {
	clock := NewManualClock(0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	for i := 0; i < 5; i++ {
		s.Schedule(monoBuffer(0.5))
	}
	clock.Advance(0.6) // first source started, rest pending

	s.Interrupt()

	if s.ActiveSources() != 0 {
		t.Errorf("Expected empty active list after interrupt, got %d", s.ActiveSources())
	}
	if s.IsSpeaking() {
		t.Error("Expected speaking false after interrupt")
	}
	if got := s.NextStart(); got > clock.Now() {
		t.Errorf("Expected cursor <= now after interrupt, got %v now %v", got, clock.Now())
	}
	if sink.flushes != 1 {
		t.Errorf("Expected one sink flush, got %d", sink.flushes)
	}

	// No further audio from the interrupted turn may be heard.
	before := sink.writeCount()
	clock.Advance(10.0)
	if sink.writeCount() != before {
		t.Error("Expected no writes after interrupt")
	}
}

func TestScheduler_ScheduleAfterInterruptRestartsTimeline(t *testing.T) {
	clock := NewManualClock(0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	s.Schedule(monoBuffer(5.0))
	clock.Advance(1.0)
	interruptAt := clock.Now()
	s.Interrupt()

	start := s.Schedule(monoBuffer(0.5))
	if start < interruptAt {
		t.Errorf("Expected post-interrupt start >= interrupt time %v, got %v", interruptAt, start)
	}
	// The new chunk is anchored near now, not chained after the interrupted
	// chunk's original end time (which was 5.0).
	if start >= 5.0 {
		t.Errorf("Expected start before old timeline end, got %v", start)
	}
}

func TestScheduler_ResetMatchesInterrupt(t *testing.T) {
	clock := NewManualClock(0)
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	s.Schedule(monoBuffer(1.0))
	s.Reset()

	if s.ActiveSources() != 0 || s.IsSpeaking() {
		t.Error("Expected reset to clear sources and speaking")
	}
	if sink.flushes != 1 {
		t.Errorf("Expected one flush on reset, got %d", sink.flushes)
	}
}

func TestManualClock_StopPreventsFire(t *testing.T) {
	clock := NewManualClock(0)

	fired := false
	timer := clock.AfterFunc(1.0, func() { fired = true })
	if !timer.Stop() {
		t.Error("Expected Stop to report the timer as pending")
	}

	clock.Advance(2.0)
	if fired {
		t.Error("Expected stopped timer not to fire")
	}
	if timer.Stop() {
		t.Error("Expected second Stop to report not pending")
	}
}
