// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package queue buffers notices and drains them sequentially against the
// transport, applying exponential backoff throttling on failures. A single
// worker goroutine is the only consumer, so notices are delivered strictly
// in push order, one at a time.
package queue

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/torchlite-io/torchlite-go/model"
)

var (
	ErrNoSenderProvided    = errors.New("no sender provided")
	ErrNoConverterProvided = errors.New("no payload converter provided")
)

const (
	// DefaultMaxSize bounds the number of buffered items.
	DefaultMaxSize = 1000

	// DefaultThrottleBase is the base of the exponential backoff delay.
	DefaultThrottleBase = 1.05

	// maxThrottleLevel caps the backoff exponent so the worst-case delay
	// stays large but bounded.
	maxThrottleLevel = 100
)

// queue states
const (
	accepting int32 = iota
	shutdown
)

// Sender performs a single delivery attempt of one payload. The transport
// satisfies this interface.
type Sender interface {
	Send(ctx context.Context, payload model.NoticePayload) (*model.IngestResponse, error)
}

// Converter serializes a notice into its wire payload form at push time.
// The notice builder satisfies this interface.
type Converter interface {
	ToPayload(n *model.Notice) model.NoticePayload
}

// Config contains config data for a delivery queue.
type Config struct {
	// MaxSize bounds the number of buffered items. Pushes beyond the
	// bound are dropped.
	// (Optional) Defaults to DefaultMaxSize.
	MaxSize int

	// ThrottleBase is the base of the exponential backoff delay applied
	// before sends while the throttle level is above zero.
	// (Optional) Defaults to DefaultThrottleBase.
	ThrottleBase float64

	// Logger to be used by the queue.
	// (Optional) By default a no op logger will be used.
	Logger *zap.Logger

	// Measures allows queue activity to be collected.
	// (Optional) If not provided, no metrics are recorded.
	Measures *Measures
}

// item is the union of the things that can travel through the queue: a
// payload to send, a flush marker carrying its completion channel, or a
// shutdown marker.
type item struct {
	payload   *model.NoticePayload
	flushDone chan struct{}
	shutdown  bool
}

// Q is a bounded FIFO delivery queue. Push may be called from any
// goroutine; draining happens on exactly one worker goroutine.
type Q struct {
	sender   Sender
	conv     Converter
	items    chan item
	done     chan struct{}
	logger   *zap.Logger
	measures *Measures
	base     float64
	maxSize  int

	state int32
	depth int64

	// throttleLevel is touched only by the worker goroutine.
	throttleLevel int

	// sleep is indirected for tests.
	sleep func(time.Duration)
}

// New creates a delivery queue and starts its worker goroutine.
func New(config Config, sender Sender, conv Converter) (*Q, error) {
	if sender == nil {
		return nil, ErrNoSenderProvided
	}
	if conv == nil {
		return nil, ErrNoConverterProvided
	}
	validateConfig(&config)

	q := &Q{
		sender:   sender,
		conv:     conv,
		items:    make(chan item, config.MaxSize),
		done:     make(chan struct{}),
		logger:   config.Logger,
		measures: config.Measures,
		base:     config.ThrottleBase,
		maxSize:  config.MaxSize,
		sleep:    time.Sleep,
	}
	go q.run()
	return q, nil
}

func validateConfig(config *Config) {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMaxSize
	}
	if config.ThrottleBase <= 1 {
		config.ThrottleBase = DefaultThrottleBase
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
}

// Push serializes the notice to payload form and appends it to the queue.
// It reports false, and the notice is dropped, when the queue has begun
// shutting down or is at capacity. A failed push is logged, never raised:
// telemetry failures must not crash the host application.
func (q *Q) Push(n *model.Notice) bool {
	if atomic.LoadInt32(&q.state) != accepting {
		q.logger.Warn("dropping notice: delivery queue has shut down",
			zap.String("errorClass", n.ErrorClass))
		q.dropped(ReasonShutdown)
		return false
	}

	payload := q.conv.ToPayload(n)
	select {
	case q.items <- item{payload: &payload}:
		q.gaugeDepth(atomic.AddInt64(&q.depth, 1))
		return true
	default:
		q.logger.Warn("dropping notice: delivery queue is full",
			zap.String("errorClass", n.ErrorClass), zap.Int("maxSize", q.maxSize))
		q.dropped(ReasonQueueFull)
		return false
	}
}

// Depth returns the number of items currently buffered.
func (q *Q) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

// Flush enqueues a flush marker and waits for the worker to reach it,
// bounded by timeout. It reports whether everything pushed before the call
// was actually drained; false means the timer won the race, not that
// queued items were discarded.
func (q *Q) Flush(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// A momentarily full channel is not a failure; the worker frees a slot
	// with every pop, so wait for room under the same deadline.
	flushDone := make(chan struct{})
	select {
	case q.items <- item{flushDone: flushDone}:
		atomic.AddInt64(&q.depth, 1)
	case <-q.done:
		return false
	case <-timer.C:
		return false
	}

	select {
	case <-flushDone:
		return true
	case <-q.done:
		return false
	case <-timer.C:
		return false
	}
}

// Stop marks the queue as shut down, so further pushes fail fast, and
// waits for the worker to reach the shutdown marker, bounded by timeout.
// Losing the race abandons any still-queued items: Stop merely stops
// waiting, it cannot retract a send already dispatched.
func (q *Q) Stop(timeout time.Duration) bool {
	if atomic.CompareAndSwapInt32(&q.state, accepting, shutdown) {
		// The worker drains items pushed before the marker, then exits.
		go func() {
			q.items <- item{shutdown: true}
		}()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.done:
		return true
	case <-timer.C:
		q.logger.Warn("delivery queue did not drain before the shutdown deadline",
			zap.Duration("timeout", timeout), zap.Int("abandoned", q.Depth()))
		return false
	}
}

// run is the drain loop. It is the sole consumer of the items channel and
// the only goroutine that touches the throttle level, so no lock guards
// either.
func (q *Q) run() {
	defer close(q.done)
	for it := range q.items {
		if it.shutdown {
			return
		}
		q.gaugeDepth(atomic.AddInt64(&q.depth, -1))
		if it.flushDone != nil {
			close(it.flushDone)
			continue
		}
		q.send(*it.payload)
	}
}

// send applies the throttle delay, performs one delivery attempt and
// adjusts the throttle level by the outcome. Failed payloads are not
// re-queued; the transport has already logged the classification.
func (q *Q) send(payload model.NoticePayload) {
	if q.throttleLevel > 0 {
		q.sleep(q.throttleDelay())
	}

	_, err := q.sender.Send(context.Background(), payload)
	if err != nil {
		if q.throttleLevel < maxThrottleLevel {
			q.throttleLevel++
		}
		q.delivered(FailureOutcome)
	} else {
		if q.throttleLevel > 0 {
			q.throttleLevel--
		}
		q.delivered(SuccessOutcome)
	}
	q.gaugeThrottle(q.throttleLevel)
}

// throttleDelay computes round((base^level - 1) * 1000) milliseconds. The
// delay self-heals once the endpoint recovers: each success walks the
// level back down.
func (q *Q) throttleDelay() time.Duration {
	ms := math.Round((math.Pow(q.base, float64(q.throttleLevel)) - 1) * 1000)
	return time.Duration(ms) * time.Millisecond
}

func (q *Q) delivered(outcome string) {
	if q.measures == nil {
		return
	}
	q.measures.Deliveries.With(prometheus.Labels{OutcomeLabel: outcome}).Add(1)
}

func (q *Q) dropped(reason string) {
	if q.measures == nil {
		return
	}
	q.measures.Dropped.With(prometheus.Labels{ReasonLabel: reason}).Add(1)
}

func (q *Q) gaugeDepth(depth int64) {
	if q.measures == nil {
		return
	}
	q.measures.Depth.Set(float64(depth))
}

func (q *Q) gaugeThrottle(level int) {
	if q.measures == nil {
		return
	}
	q.measures.Throttle.Set(float64(level))
}
