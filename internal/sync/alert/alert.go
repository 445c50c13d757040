// Package alert gates user-facing desktop-style alerts behind an explicit
// tri-state permission, mirroring platform notification permission
// semantics: the user is prompted once, and an explicit deny is sticky.
package alert

import (
	"sync"

	"github.com/fatih/color"
)

type Permission int

const (
	PermissionDefault Permission = iota // not yet decided
	PermissionGranted
	PermissionDenied
)

// Notifier delivers an alert to the user.
type Notifier interface {
	Notify(title, body string) error
}

// Gate wraps a Notifier behind a permission state. Notify is a no-op
// unless permission was granted.
type Gate struct {
	mu       sync.Mutex
	state    Permission
	prompt   func() bool
	notifier Notifier
}

// NewGate builds a gate in the neutral state. prompt is invoked at most
// once, the first time Request is called; it returns whether the user
// granted permission.
func NewGate(prompt func() bool, n Notifier) *Gate {
	if n == nil {
		n = NopNotifier{}
	}
	return &Gate{prompt: prompt, notifier: n}
}

// Request asks the user for permission if they have not decided yet and
// reports whether alerts are now allowed. It never re-prompts after an
// explicit deny.
func (g *Gate) Request() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != PermissionDefault {
		return g.state == PermissionGranted
	}
	granted := false
	if g.prompt != nil {
		granted = g.prompt()
	}
	if granted {
		g.state = PermissionGranted
	} else {
		g.state = PermissionDenied
	}
	return granted
}

func (g *Gate) State() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Notify delivers the alert when permission was granted, otherwise does
// nothing. Delivery errors are swallowed: a failed alert is an "off"
// condition, not an application error.
func (g *Gate) Notify(title, body string) {
	g.mu.Lock()
	granted := g.state == PermissionGranted
	n := g.notifier
	g.mu.Unlock()
	if !granted {
		return
	}
	_ = n.Notify(title, body)
}

// TerminalNotifier prints alerts to the terminal.
type TerminalNotifier struct{}

func (TerminalNotifier) Notify(title, body string) error {
	color.Yellow("🔔 %s", title)
	color.White("   %s", body)
	return nil
}

// NopNotifier discards alerts.
type NopNotifier struct{}

func (NopNotifier) Notify(title, body string) error { return nil }
