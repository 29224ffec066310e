// Package notice holds the short-lived status message shown to a user
// after an action.
package notice

import (
	"sync"
	"time"
)

const DefaultTTL = 1500 * time.Millisecond

type Level string

const (
	Info  Level = "info"
	Error Level = "error"
)

type Message struct {
	Level Level
	Text  string
}

// Notice keeps at most one message. Each Show replaces the previous
// message and restarts the expiry timer.
type Notice struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *Message
	timer   *time.Timer
	seq     uint64
}

func New(ttl time.Duration) *Notice {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Notice{ttl: ttl}
}

func (n *Notice) Show(level Level, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.seq++
	seq := n.seq
	n.current = &Message{Level: level, Text: text}
	n.timer = time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		// A newer message may have replaced this one before the timer fired.
		if n.seq == seq {
			n.current = nil
		}
	})
}

func (n *Notice) Info(text string)  { n.Show(Info, text) }
func (n *Notice) Error(text string) { n.Show(Error, text) }

// Current returns the visible message, if any.
func (n *Notice) Current() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Message{}, false
	}
	return *n.current, true
}

// Stop clears the message and cancels the pending expiry.
func (n *Notice) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.seq++
	n.current = nil
}
