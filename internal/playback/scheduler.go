package playback

import (
	"sync"

	"go.uber.org/zap"
)

// Voice is a single playing buffer that can be stopped immediately.
type Voice interface {
	Stop()
}

// Sink starts immediate playback of a decoded PCM buffer at the given rate
// multiplier. Rate changes duration only; pitch is not corrected.
type Sink interface {
	Play(samples []float32, rate float64) (Voice, error)
}

// Scheduler owns a "next available start time" cursor on the output clock and
// schedules decoded buffers back-to-back with no gaps. StopAll silences
// everything scheduled or playing and resets the cursor to "now", which is the
// mechanism behind barge-in.
type Scheduler struct {
	clock      Clock
	sink       Sink
	sampleRate int
	log        *zap.Logger

	mu      sync.Mutex
	cursor  float64
	gen     uint64
	pending map[*entry]Timer
	live    map[*entry]Voice
}

type entry struct {
	samples []float32
	rate    float64
	stop    float64
}

func New(clock Clock, sink Sink, sampleRate int, log *zap.Logger) *Scheduler {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		clock:      clock,
		sink:       sink,
		sampleRate: sampleRate,
		log:        log,
		pending:    make(map[*entry]Timer),
		live:       make(map[*entry]Voice),
	}
}

// Schedule enqueues a buffer to begin at the cursor (or "now" if the queue has
// drained) and advances the cursor by duration/rate.
func (s *Scheduler) Schedule(samples []float32, rate float64) {
	if len(samples) == 0 {
		return
	}
	if rate <= 0 {
		rate = 1.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	start := s.cursor
	if start < now {
		start = now
	}
	duration := float64(len(samples)) / float64(s.sampleRate) / rate

	e := &entry{samples: samples, rate: rate, stop: start + duration}
	s.cursor = e.stop

	gen := s.gen
	s.pending[e] = s.clock.AfterFunc(start-now, func() { s.begin(e, gen) })
}

func (s *Scheduler) begin(e *entry, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	delete(s.pending, e)

	voice, err := s.sink.Play(e.samples, e.rate)
	if err != nil {
		s.log.Warn("playback start failed", zap.Error(err))
		return
	}
	s.live[e] = voice

	remaining := e.stop - s.clock.Now()
	s.clock.AfterFunc(remaining, func() { s.finish(e, gen) })
}

func (s *Scheduler) finish(e *entry, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		delete(s.live, e)
	}
}

// StopAll immediately halts every scheduled or playing buffer and resets the
// cursor to the current clock time so the next buffer starts from "now".
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	for e, t := range s.pending {
		t.Stop()
		delete(s.pending, e)
	}
	for e, v := range s.live {
		v.Stop()
		delete(s.live, e)
	}
	s.cursor = s.clock.Now()
}

// Cursor reports the next available start time on the output clock.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
