package chatclient

import (
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// DefaultQuietPeriod is how long after the last keystroke "stop typing" is sent.
const DefaultQuietPeriod = 2000 * time.Millisecond

type emitFunc func(event protocol.Event, chatID string)

// debouncer turns keystrokes in one chat into a single "typing" followed by
// a single "stop typing" once input has been quiet for the quiet period. At
// most one timer is live; every keystroke replaces it.
type debouncer struct {
	chatID string
	quiet  time.Duration
	emit   emitFunc

	mu     sync.Mutex
	typing bool
	gen    uint64
	timer  *time.Timer
}

func newDebouncer(chatID string, quiet time.Duration, emit emitFunc) *debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &debouncer{chatID: chatID, quiet: quiet, emit: emit}
}

func (d *debouncer) keystroke() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.typing {
		d.typing = true
		d.emit(protocol.EventTyping, d.chatID)
	}

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.expire(gen) })
}

// expire runs on the timer goroutine. A timer that was replaced after it had
// already fired sees a newer generation and does nothing.
func (d *debouncer) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen || !d.typing {
		return
	}
	d.typing = false
	d.timer = nil
	d.emit(protocol.EventStopTyping, d.chatID)
}

// flush sends "stop typing" now if a typing signal is outstanding.
func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelLocked()
	if d.typing {
		d.typing = false
		d.emit(protocol.EventStopTyping, d.chatID)
	}
}

// stop cancels the timer without emitting anything.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelLocked()
	d.typing = false
}

func (d *debouncer) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
