package dispatch

// Scheduler runs fn on whatever thread the embedder considers "main" — the
// one thread Observer.OnModelUpdated and Delegate callbacks are delivered
// on. It is the engine's DeliveryAdapter (spec.md component C7).
//
// This is an injected collaborator rather than a hard assumption of "the
// goroutine that called New," because Go has no privileged main
// thread the way the original Objective-C/Swift runtime does; callers
// embedding the engine in a GUI toolkit provide a Scheduler that posts to
// that toolkit's event loop, and tests use Immediate.
type Scheduler interface {
	Run(fn func())
}

// immediateScheduler runs fn synchronously, in the calling goroutine. It is
// correct for any embedding that does not require delivery on a specific
// thread, and is what every test and the demo CLI use.
type immediateScheduler struct{}

// Immediate returns a Scheduler that invokes fn synchronously and
// immediately, with no hand-off at all.
func Immediate() Scheduler { return immediateScheduler{} }

func (immediateScheduler) Run(fn func()) { fn() }

// ChanScheduler posts closures to a buffered channel for a host-owned loop
// to drain on its own thread (a GUI main loop, an actor mailbox, etc). It is
// the engine's answer to "main thread" in a Go program: construct one,
// subscribe its Drain method into whatever event loop owns delivery, and
// hand the ChanScheduler itself to New.
type ChanScheduler struct {
	work chan func()
}

// NewChanScheduler returns a ChanScheduler whose internal queue holds up to
// buffer pending closures before Run starts blocking the caller.
func NewChanScheduler(buffer int) *ChanScheduler {
	return &ChanScheduler{work: make(chan func(), buffer)}
}

func (c *ChanScheduler) Run(fn func()) {
	c.work <- fn
}

// Drain runs queued closures on the calling goroutine until stop is
// closed. It is meant to be the body of the host application's own main
// loop iteration, e.g. `go scheduler.Drain(stopCh)` wired to a UI
// framework's idle callback.
func (c *ChanScheduler) Drain(stop <-chan struct{}) {
	for {
		select {
		case fn := <-c.work:
			fn()
		case <-stop:
			return
		}
	}
}
