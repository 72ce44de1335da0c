// Package dispatch implements Dispatcher: the engine's public entry point.
// It owns a ListenerIndex and a PauseTable and serializes every mutating
// call onto a single internal goroutine so that ListenerIndex and
// PauseTable never need their own locks. The Dispatcher deliberately holds
// no root Model of its own — every live tree is owned by the observer that
// reports it through CurrentModel, and every publish is rewritten
// separately against each affected observer's own view.
//
// The serial-queue shape — a struct carrying {Type, Payload, Result, Error}
// submitted over a buffered channel and drained by one goroutine — is
// lifted directly from the teacher's pkg/concurrency/brain_worker.go
// (BrainWorker.run/processOp/Submit/SubmitAsync), generalized from
// brain-memory operation types (OpWrite, OpRead, OpSearch, ...) to engine
// operation types (opSubscribe, opPublish, opDelete, ...). The periodic
// clean_memory tick is lifted from pkg/daemon/workers.go's
// waitInterval/ticker-reposts-itself pattern.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelsync/modelsync/pkg/listener"
	"github.com/modelsync/modelsync/pkg/model"
	"github.com/modelsync/modelsync/pkg/pause"
	"github.com/modelsync/modelsync/pkg/weakset"
)

type opType int

const (
	opSubscribe opType = iota
	opUnsubscribe
	opPublish
	opDelete
	opPause
	opResume
	opIsPaused
	opCleanMemory
	opSetDelegate
	opStats
)

// operation is the Dispatcher's internal queue envelope, the direct
// analogue of the teacher's concurrency.Operation.
type operation struct {
	kind    opType
	payload any
	result  chan any
	errc    chan error
}

// Stats is a point-in-time snapshot of Dispatcher internals, used by
// pkg/introspect and by tests.
type Stats struct {
	ListenerCount int
	PausedCount   int
	OpsProcessed  uint64
}

// Config controls Dispatcher behavior that isn't part of the core
// algorithm: how often the background memory-pressure pass runs, and where
// logs go. See pkg/config for how this is populated from YAML/env/CLI.
type Config struct {
	// GCInterval is how often clean_memory runs automatically. Zero
	// disables the background ticker entirely; callers may still invoke
	// CleanMemory explicitly (spec.md's "memory pressure" trigger).
	GCInterval time.Duration
	Logger     *slog.Logger
}

// Dispatcher is the engine's public handle. Construct with New and release
// resources with Close when done.
type Dispatcher struct {
	scheduler Scheduler
	logger    *slog.Logger

	ops chan *operation

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	gcInterval time.Duration
	gcMu       sync.RWMutex

	// State below is owned exclusively by the run() goroutine; it is never
	// touched from any other goroutine.
	index     *listener.Index
	pausedSet *pause.Table
	delegates *weakset.Set[model.Delegate]

	opsProcessed uint64
}

// New constructs a Dispatcher and starts its serial-queue goroutine and,
// if cfg.GCInterval is positive, its background clean_memory ticker.
func New(scheduler Scheduler, cfg Config) *Dispatcher {
	if scheduler == nil {
		scheduler = Immediate()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		scheduler:  scheduler,
		logger:     logger,
		ops:        make(chan *operation, 256),
		ctx:        ctx,
		cancel:     cancel,
		gcInterval: cfg.GCInterval,
		index:      listener.New(),
		pausedSet:  pause.New(),
		delegates:  weakset.New[model.Delegate](),
	}

	d.wg.Add(1)
	go d.run()

	if d.gcInterval > 0 {
		d.wg.Add(1)
		go d.gcLoop()
	}
	return d
}

// Close stops the serial-queue goroutine and the GC ticker and waits for
// both to exit. Calling Close more than once is harmless: cancelling the
// context and waiting on the goroutines are both idempotent. Calls made
// after Close return without doing any work.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

// submit round-trips an operation through the serial queue and blocks for
// its result, exactly like BrainWorker.Submit.
func (d *Dispatcher) submit(kind opType, payload any) (any, error) {
	op := &operation{kind: kind, payload: payload, result: make(chan any, 1), errc: make(chan error, 1)}
	select {
	case d.ops <- op:
	case <-d.ctx.Done():
		return nil, context.Canceled
	}
	select {
	case res := <-op.result:
		err := <-op.errc
		return res, err
	case <-d.ctx.Done():
		return nil, context.Canceled
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case op := <-d.ops:
			d.process(op)
		}
	}
}

func (d *Dispatcher) gcLoop() {
	defer d.wg.Done()
	for {
		interval := d.currentGCInterval()
		if interval <= 0 || !d.waitInterval(interval) {
			return
		}
		d.submit(opCleanMemory, nil)
	}
}

// waitInterval blocks for interval or until Close is called, reporting
// whether it woke up due to the timer (true) versus shutdown (false) — the
// same shape as the teacher's DaemonManager.waitInterval, so that a new
// interval takes effect on the very next tick rather than requiring a
// restart.
func (d *Dispatcher) waitInterval(interval time.Duration) bool {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-d.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) currentGCInterval() time.Duration {
	d.gcMu.RLock()
	defer d.gcMu.RUnlock()
	return d.gcInterval
}

// SetGCInterval changes how often clean_memory runs automatically,
// effective on the next tick. A value of zero takes effect only after the
// loop is next woken (it continues running until the current wait
// expires), and then stops the background loop; a later positive value
// does not restart it, and neither does setting an interval on a
// Dispatcher created with a zero GCInterval.
func (d *Dispatcher) SetGCInterval(interval time.Duration) {
	d.gcMu.Lock()
	defer d.gcMu.Unlock()
	d.gcInterval = interval
}

func (d *Dispatcher) process(op *operation) {
	d.opsProcessed++
	switch op.kind {
	case opSubscribe:
		p := op.payload.(subscribePayload)
		d.doSubscribe(p)
		op.result <- nil
		op.errc <- nil
	case opUnsubscribe:
		p := op.payload.(unsubscribePayload)
		d.doUnsubscribe(p)
		op.result <- nil
		op.errc <- nil
	case opPublish:
		p := op.payload.(publishPayload)
		d.doPublish(p)
		op.result <- nil
		op.errc <- nil
	case opDelete:
		p := op.payload.(deletePayload)
		err := d.doDelete(p)
		op.result <- nil
		op.errc <- err
	case opPause:
		p := op.payload.(pausePayload)
		d.doPause(p)
		op.result <- nil
		op.errc <- nil
	case opResume:
		p := op.payload.(model.Observer)
		d.doResume(p)
		op.result <- nil
		op.errc <- nil
	case opIsPaused:
		p := op.payload.(model.Observer)
		op.result <- d.pausedSet.IsPaused(p)
		op.errc <- nil
	case opCleanMemory:
		d.doCleanMemory()
		op.result <- nil
		op.errc <- nil
	case opSetDelegate:
		p := op.payload.(model.Delegate)
		d.delegates = weakset.New[model.Delegate]()
		d.delegates.Add(p)
		op.result <- nil
		op.errc <- nil
	case opStats:
		op.result <- Stats{
			ListenerCount: d.index.Len(),
			PausedCount:   d.pausedSet.Len(),
			OpsProcessed:  d.opsProcessed,
		}
		op.errc <- nil
	default:
		op.result <- nil
		op.errc <- fmt.Errorf("dispatch: unknown operation %v", op.kind)
	}
}
