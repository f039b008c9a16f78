// Package milestone decouples internal state transitions from external
// presentation. Producers fire triggers; the bus resolves them to declared
// actions and delivers each resulting notification at most once.
package milestone

import "go.uber.org/zap"

type declKey struct {
	kind      Kind
	threshold uint64
	name      string
}

type occurrence struct {
	kind      Kind
	threshold uint64
	source    string
}

// Bus routes trigger occurrences to listeners keyed by action. All methods
// run on the tick goroutine; external input reaches the bus through the
// input queue, never directly.
type Bus struct {
	decls     map[declKey][]Milestone
	listeners map[string][]Listener
	taps      []Listener
	commands  []CommandHandler
	queue     []Notification
	fired     map[occurrence]struct{}
	session   uint64
	tick      uint64
	log       *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		decls:     make(map[declKey][]Milestone),
		listeners: make(map[string][]Listener),
		fired:     make(map[occurrence]struct{}),
		log:       log,
	}
}

func keyOf(t Trigger) declKey {
	return declKey{kind: t.Kind, threshold: t.Threshold, name: t.Name}
}

// Declare registers a milestone. Declaring the same pair twice is a no-op.
func (b *Bus) Declare(m Milestone) {
	m.Action = Normalize(m.Action)
	if m.Trigger.Kind == ExternalCommand {
		m.Trigger.Name = Normalize(m.Trigger.Name)
	}
	k := keyOf(m.Trigger)
	for _, d := range b.decls[k] {
		if d == m {
			return
		}
	}
	b.decls[k] = append(b.decls[k], m)
}

// Subscribe adds a listener for an action.
func (b *Bus) Subscribe(action string, l Listener) {
	a := Normalize(action)
	b.listeners[a] = append(b.listeners[a], l)
}

// Tap adds an observer that sees every notification after delivery,
// including misses.
func (b *Bus) Tap(l Listener) { b.taps = append(b.taps, l) }

// HandleCommands adds a handler for external commands.
func (b *Bus) HandleCommands(h CommandHandler) { b.commands = append(b.commands, h) }

// BeginSession starts a new occurrence epoch.
func (b *Bus) BeginSession(id uint64) {
	b.session = id
	clear(b.fired)
}

// SetTick records the tick stamped on notifications fired from now on.
func (b *Bus) SetTick(n uint64) { b.tick = n }

// Fire records one occurrence of t from source and queues one notification
// per distinct action among the matching declarations. A tick threshold
// occurrence fires at most once per source per session. Returns the number
// of notifications queued.
func (b *Bus) Fire(t Trigger, source string) int {
	if t.Kind == TickThreshold {
		occ := occurrence{kind: t.Kind, threshold: t.Threshold, source: source}
		if _, dup := b.fired[occ]; dup {
			return 0
		}
		b.fired[occ] = struct{}{}
	}
	if t.Kind == ExternalCommand {
		t.Name = Normalize(t.Name)
	}
	n := 0
	var seen map[string]struct{}
	for _, d := range b.decls[keyOf(t)] {
		if d.Trigger.Scope != "" && d.Trigger.Scope != source {
			continue
		}
		// scoped and unscoped declarations may name the same action
		if _, dup := seen[d.Action]; dup {
			continue
		}
		if seen == nil {
			seen = make(map[string]struct{}, 2)
		}
		seen[d.Action] = struct{}{}
		b.queue = append(b.queue, Notification{
			Action:  d.Action,
			Trigger: d.Trigger,
			Source:  source,
			Tick:    b.tick,
			Session: b.session,
		})
		n++
	}
	return n
}

// Command applies an external command: handlers first, then any milestones
// declared on it. Reports whether anything reacted.
func (b *Bus) Command(name string) bool {
	name = Normalize(name)
	handled := false
	for _, h := range b.commands {
		if h(name) {
			handled = true
		}
	}
	fired := b.Fire(OnCommand(name), "")
	if !handled && fired == 0 {
		b.log.Debug("external command ignored", zap.String("command", name))
	}
	return handled || fired > 0
}

// Pending returns the number of queued notifications.
func (b *Bus) Pending() int { return len(b.queue) }

// Dispatch delivers queued notifications in firing order. Notifications
// fired by listeners during dispatch are delivered in the same call.
// Returns the number delivered to at least one listener.
func (b *Bus) Dispatch() int {
	delivered := 0
	for len(b.queue) > 0 {
		batch := b.queue
		b.queue = nil
		for _, n := range batch {
			ls := b.listeners[n.Action]
			for _, l := range ls {
				l(n)
			}
			if len(ls) > 0 {
				n.Delivered = true
				delivered++
			} else {
				b.log.Debug("milestone has no listener",
					zap.String("action", n.Action),
					zap.Stringer("trigger", n.Trigger),
				)
			}
			for _, tap := range b.taps {
				tap(n)
			}
		}
	}
	return delivered
}
