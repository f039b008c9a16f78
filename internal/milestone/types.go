package milestone

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Kind classifies what causes a milestone to fire.
type Kind int

const (
	SessionStart Kind = iota
	SessionEnd
	TickThreshold
	ExternalCommand
)

func (k Kind) String() string {
	switch k {
	case SessionStart:
		return "session_start"
	case SessionEnd:
		return "session_end"
	case TickThreshold:
		return "tick"
	case ExternalCommand:
		return "command"
	}
	return "unknown"
}

// Trigger identifies a trigger condition. Threshold is meaningful for
// TickThreshold, Name for ExternalCommand. Scope restricts a declaration to
// one source (a track id); empty matches any source.
type Trigger struct {
	Kind      Kind
	Threshold uint64
	Name      string
	Scope     string
}

func OnSessionStart() Trigger { return Trigger{Kind: SessionStart} }
func OnSessionEnd() Trigger   { return Trigger{Kind: SessionEnd} }

func AtTick(n uint64, scope string) Trigger {
	return Trigger{Kind: TickThreshold, Threshold: n, Scope: scope}
}

func OnCommand(name string) Trigger {
	return Trigger{Kind: ExternalCommand, Name: Normalize(name)}
}

func (t Trigger) String() string {
	var s string
	switch t.Kind {
	case TickThreshold:
		s = fmt.Sprintf("tick:%d", t.Threshold)
	case ExternalCommand:
		s = "command:" + t.Name
	default:
		s = t.Kind.String()
	}
	if t.Scope != "" {
		s += "@" + t.Scope
	}
	return s
}

// ParseTrigger parses "session_start", "session_end", "command:<name>" or
// "tick:<n>", optionally suffixed with "@<scope>".
func ParseTrigger(s string) (Trigger, error) {
	s = strings.TrimSpace(s)
	var scope string
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s, scope = s[:i], s[i+1:]
	}
	var t Trigger
	switch {
	case s == "session_start":
		t = OnSessionStart()
	case s == "session_end":
		t = OnSessionEnd()
	case strings.HasPrefix(s, "command:"):
		name := Normalize(strings.TrimPrefix(s, "command:"))
		if name == "" {
			return Trigger{}, fmt.Errorf("trigger %q: empty command name", s)
		}
		t = OnCommand(name)
	case strings.HasPrefix(s, "tick:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "tick:"), 10, 64)
		if err != nil || n == 0 {
			return Trigger{}, fmt.Errorf("trigger %q: tick threshold must be a positive integer", s)
		}
		t = AtTick(n, "")
	default:
		return Trigger{}, fmt.Errorf("unknown trigger %q", s)
	}
	t.Scope = scope
	return t, nil
}

// Milestone is a declared trigger/action pair.
type Milestone struct {
	Trigger Trigger
	Action  string
}

// Notification is what listeners receive when a milestone fires.
type Notification struct {
	Action    string
	Trigger   Trigger
	Source    string // track id for tick thresholds, empty otherwise
	Tick      uint64
	Session   uint64
	Delivered bool // set once at least one listener received it
}

// Listener reacts to a milestone action. Listeners run on the tick goroutine
// and must not block.
type Listener func(Notification)

// CommandHandler applies an external command; it reports whether the
// command addressed anything it owns.
type CommandHandler func(name string) bool

// Normalize folds an action or command identifier so that UI input such as
// "Resume-Track-1" matches a declared "resume-track-1".
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
