package capture

import (
	"sync"

	"go.uber.org/zap"
)

// ConsoleHandler receives console messages.
type ConsoleHandler interface {
	HandleConsole(ConsoleMessage)
}

// DownloadHandler receives file-emission notifications.
type DownloadHandler interface {
	HandleDownload(Download)
}

// Publisher accepts notifications from event sources.
type Publisher interface {
	Publish(Notification) bool
}

const defaultQueueSize = 256

type subscription struct {
	id       int
	console  ConsoleHandler
	download DownloadHandler
}

// Dispatcher serializes notifications from any number of producer goroutines
// onto one consumer goroutine. Handlers run one at a time, in arrival order.
type Dispatcher struct {
	logger *zap.Logger
	queue  chan Notification

	// sendMu guards closed and the queue close; subsMu guards subscriptions.
	// They are separate so the consumer never waits on a blocked producer.
	sendMu sync.RWMutex
	closed bool

	subsMu sync.RWMutex
	subs   []subscription
	nextID int

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}

	handled int
}

// NewDispatcher creates a dispatcher with a bounded queue. Publish blocks
// while the queue is full.
func NewDispatcher(queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger: logger,
		queue:  make(chan Notification, queueSize),
		done:   make(chan struct{}),
	}
}

// SubscribeConsole registers a console handler and returns its deregistration func.
func (d *Dispatcher) SubscribeConsole(h ConsoleHandler) func() {
	return d.subscribe(subscription{console: h})
}

// SubscribeDownload registers a download handler and returns its deregistration func.
func (d *Dispatcher) SubscribeDownload(h DownloadHandler) func() {
	return d.subscribe(subscription{download: h})
}

func (d *Dispatcher) subscribe(s subscription) func() {
	d.subsMu.Lock()
	d.nextID++
	s.id = d.nextID
	d.subs = append(d.subs, s)
	d.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.subsMu.Lock()
			defer d.subsMu.Unlock()
			for i, cur := range d.subs {
				if cur.id == s.id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Start launches the consumer goroutine. Calling Start more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Publish enqueues a notification. It returns false once the dispatcher is closed.
func (d *Dispatcher) Publish(n Notification) bool {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed {
		d.logger.Debug("notification after close dropped")
		return false
	}
	d.queue <- n
	return true
}

// Close stops accepting notifications, handles everything already queued and
// waits for the consumer to exit.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.Start()
		d.sendMu.Lock()
		d.closed = true
		close(d.queue)
		d.sendMu.Unlock()
	})
	<-d.done
}

// Handled returns the number of notifications delivered. Only meaningful after Close.
func (d *Dispatcher) Handled() int {
	return d.handled
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.dispatch(n)
		d.handled++
	}
}

func (d *Dispatcher) dispatch(n Notification) {
	d.subsMu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.subsMu.RUnlock()

	for _, s := range subs {
		switch {
		case n.Console != nil && s.console != nil:
			s.console.HandleConsole(*n.Console)
		case n.Download != nil && s.download != nil:
			s.download.HandleDownload(*n.Download)
		}
	}
}
