package playback

import (
	"sync"

	"github.com/zara-labs/live-gateway/internal/audio"
)

// DefaultLead is how far ahead of the clock a chunk is scheduled when the
// cursor has fallen behind real time. It absorbs scheduling jitter between
// chunk arrival and playback start.
const DefaultLead = 0.1

// Sink receives scheduled audio. Write is invoked when a source's start time
// arrives; Flush is invoked on interrupt or reset so downstream playback can
// discard anything it has buffered.
type Sink interface {
	Write(buf *audio.Buffer, startAt float64)
	Flush()
}

// source is one scheduled chunk on the timeline. The scheduler owns it
// exclusively; a finished or stopped source is never left in the active list.
type source struct {
	buf        *audio.Buffer
	startAt    float64
	startTimer Timer
	endTimer   Timer
}

// Scheduler arranges independently-arriving audio buffers gaplessly on a
// single output clock. It owns the monotonic next-start cursor and the list
// of active sources, and reports a speaking flag that is true while any
// source is scheduled or playing.
type Scheduler struct {
	clock Clock
	sink  Sink
	lead  float64

	mu         sync.Mutex
	nextStart  float64
	sources    []*source
	speaking   bool
	onSpeaking func(bool)
}

// NewScheduler creates a scheduler on the given clock writing into sink.
// The cursor starts at the clock's current time.
func NewScheduler(clock Clock, sink Sink) *Scheduler {
	return &Scheduler{
		clock:     clock,
		sink:      sink,
		lead:      DefaultLead,
		nextStart: clock.Now(),
	}
}

// SetSpeakingFunc registers a callback invoked whenever the speaking flag
// changes. The callback runs without the scheduler lock held.
func (s *Scheduler) SetSpeakingFunc(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSpeaking = fn
}

// Schedule places buf at the earliest gapless position on the timeline:
// directly at the cursor, or lead seconds from now if the cursor has fallen
// behind the clock. It returns the chosen start time. The cursor advances by
// the buffer's duration and never moves backward here.
func (s *Scheduler) Schedule(buf *audio.Buffer) float64 {
	s.mu.Lock()

	now := s.clock.Now()
	if s.nextStart < now {
		s.nextStart = now + s.lead
	}
	startAt := s.nextStart
	s.nextStart = startAt + buf.Duration()

	src := &source{buf: buf, startAt: startAt}
	s.sources = append(s.sources, src)
	src.startTimer = s.clock.AfterFunc(startAt-now, func() { s.fire(src) })
	src.endTimer = s.clock.AfterFunc(s.nextStart-now, func() { s.finish(src) })

	notify := s.setSpeakingLocked(true)
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return startAt
}

// fire delivers a source to the sink at its start time.
func (s *Scheduler) fire(src *source) {
	s.mu.Lock()
	active := false
	for _, candidate := range s.sources {
		if candidate == src {
			active = true
			break
		}
	}
	s.mu.Unlock()

	// A stopped source must never reach the sink, even if its timer raced
	// the interrupt.
	if active {
		s.sink.Write(src.buf, src.startAt)
	}
}

// finish removes a naturally-completed source; when the active list empties
// the speaking flag clears. That transition is the signal the rest of the
// system uses to know the remote party stopped talking.
func (s *Scheduler) finish(src *source) {
	s.mu.Lock()
	var notify func()
	if s.removeLocked(src) && len(s.sources) == 0 {
		notify = s.setSpeakingLocked(false)
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Interrupt is the barge-in path: stop every active source immediately,
// clear the list, pull the cursor back to now, and clear speaking. This is a
// hard cut; no further audio from the interrupted turn may be heard.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	for _, src := range s.sources {
		src.startTimer.Stop()
		src.endTimer.Stop()
	}
	s.sources = nil
	s.nextStart = s.clock.Now()
	notify := s.setSpeakingLocked(false)
	s.mu.Unlock()

	s.sink.Flush()
	if notify != nil {
		notify()
	}
}

// Reset tears the timeline down when the session ends. Same effect as
// Interrupt.
func (s *Scheduler) Reset() {
	s.Interrupt()
}

// IsSpeaking reports whether any source is scheduled or playing.
func (s *Scheduler) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// NextStart returns the cursor: the earliest time the next chunk may begin.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// ActiveSources returns the number of sources scheduled or playing.
func (s *Scheduler) ActiveSources() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

func (s *Scheduler) removeLocked(src *source) bool {
	for i, candidate := range s.sources {
		if candidate == src {
			s.sources = append(s.sources[:i], s.sources[i+1:]...)
			return true
		}
	}
	return false
}

// setSpeakingLocked flips the speaking flag and returns the pending
// notification, to be invoked after the lock is released.
func (s *Scheduler) setSpeakingLocked(speaking bool) func() {
	if s.speaking == speaking {
		return nil
	}
	s.speaking = speaking
	if s.onSpeaking == nil {
		return nil
	}
	fn := s.onSpeaking
	return func() { fn(speaking) }
}
