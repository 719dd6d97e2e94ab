package announce

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

type Skip struct {
	Segment Segment
	Err     error
}

// Result reports what one sequence did. Cancelled is set when a newer
// sequence or the caller's context stopped it early.
type Result struct {
	Played    []Segment
	Skipped   []Skip
	Cancelled bool
}

// Sequencer plays one sequence at a time per client. Starting a sequence
// cancels the one in flight and waits for it to stop first.
type Sequencer struct {
	provider Provider
	log      *logger.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSequencer(provider Provider, log *logger.Logger, m *metrics.Metrics) *Sequencer {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Sequencer{provider: provider, log: log.With("component", "announce"), metrics: m}
}

// Announce plays the call sequence for ev.
func (s *Sequencer) Announce(ctx context.Context, ev model.CallEvent) Result {
	return s.Play(ctx, Plan(ev))
}

// Play awaits each segment before the next. A failing segment is logged
// and skipped; it never aborts the rest of the sequence.
func (s *Sequencer) Play(ctx context.Context, segments []Segment) Result {
	ctx, cancel, done := s.begin(ctx)
	defer cancel()
	defer close(done)
	return s.run(ctx, segments)
}

// Start is Play in the background. The previous sequence is stopped before
// Start returns, so sequences started one after another never interleave.
func (s *Sequencer) Start(ctx context.Context, segments []Segment) <-chan Result {
	ctx, cancel, done := s.begin(ctx)
	out := make(chan Result, 1)
	go func() {
		defer cancel()
		defer close(done)
		out <- s.run(ctx, segments)
	}()
	return out
}

func (s *Sequencer) run(ctx context.Context, segments []Segment) Result {
	s.metrics.AnnouncementsStarted.Inc()

	var res Result
	for _, seg := range segments {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res
		}
		err := s.provider.Play(ctx, seg)
		switch {
		case err == nil:
			res.Played = append(res.Played, seg)
		case ctx.Err() != nil:
			res.Cancelled = true
			return res
		default:
			res.Skipped = append(res.Skipped, Skip{Segment: seg, Err: err})
			s.metrics.SegmentsSkipped.WithLabelValues(string(seg.Kind)).Inc()
			if stderrors.Is(err, ErrResourceNotFound) {
				s.log.Warn("audio segment missing, skipping", "segment", seg.ID)
			} else {
				s.log.Error(err, "audio segment failed, skipping", "segment", seg.ID)
			}
		}
	}
	return res
}

// Stop cancels the sequence in flight, if any, and waits for it.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preemptLocked()
}

func (s *Sequencer) begin(parent context.Context) (context.Context, context.CancelFunc, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preemptLocked() {
		s.metrics.AnnouncementsPreempted.Inc()
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	return ctx, cancel, done
}

// preemptLocked reports whether a running sequence had to be stopped.
func (s *Sequencer) preemptLocked() bool {
	if s.cancel == nil {
		return false
	}
	running := true
	select {
	case <-s.done:
		running = false
	default:
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
	return running
}
