package workspace

import (
	"time"
)

const (
	DefaultFocusDuration = 25 * time.Minute
	BreakDuration        = 5 * time.Minute

	// IdleAfter is how long without input counts as losing focus.
	IdleAfter = 30 * time.Second

	MaxFocusScore     = 100
	inactivityPenalty = 5
	idlePenalty       = 2
)

type Phase int

const (
	Focus Phase = iota
	Break
)

func (p Phase) String() string {
	if p == Break {
		return "break"
	}
	return "focus"
}

// Timer alternates focus and break periods. It only runs while active and
// stops itself when a period ends.
type Timer struct {
	focus      time.Duration
	phase      Phase
	remaining  time.Duration
	active     bool
	completed  int
	onComplete []func(finished Phase)
}

func newTimer(focus time.Duration) *Timer {
	return &Timer{focus: focus, phase: Focus, remaining: focus}
}

func (t *Timer) length() time.Duration {
	if t.phase == Break {
		return BreakDuration
	}
	return t.focus
}

func (t *Timer) Toggle() {
	t.active = !t.active
}

// Reset stops the timer and starts over with a full focus period.
func (t *Timer) Reset() {
	t.active = false
	t.phase = Focus
	t.remaining = t.focus
}

// advance runs the timer for d. Time left over after a period ends is
// dropped, as the timer is stopped at that point.
func (t *Timer) advance(d time.Duration) {
	if !t.active || d <= 0 {
		return
	}

	if d < t.remaining {
		t.remaining -= d
		return
	}

	finished := t.phase
	t.active = false

	if finished == Focus {
		t.phase = Break
	} else {
		t.phase = Focus
	}
	t.remaining = t.length()
	t.completed++

	for _, fn := range t.onComplete {
		fn(finished)
	}
}

type TimerState struct {
	Phase            string  `json:"phase"`
	RemainingSeconds int     `json:"remainingSeconds"`
	Active           bool    `json:"active"`
	Progress         float64 `json:"progress"`
	Completed        int     `json:"completed"`
}

func (t *Timer) State() TimerState {
	return TimerState{
		Phase:            t.phase.String(),
		RemainingSeconds: int(t.remaining / time.Second),
		Active:           t.active,
		Progress:         float64(t.remaining) / float64(t.length()),
		Completed:        t.completed,
	}
}

type SessionOption func(*Session)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func WithFocusDuration(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.Timer = newTimer(d)
		}
	}
}

// WithSessionComplete is called each time a focus or break period runs out.
func WithSessionComplete(fn func(finished Phase)) SessionOption {
	return func(s *Session) {
		s.onComplete = append(s.onComplete, fn)
	}
}

// Session tracks a study sitting: time spent reading, a focus score driven
// by input activity, and the focus/break timer. Time comes only from the
// clock; nothing runs in the background.
type Session struct {
	Timer *Timer

	now          func() time.Time
	last         time.Time
	reading      time.Duration
	score        int
	lastActivity time.Time
	idleAt       time.Time
	onComplete   []func(Phase)
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		Timer: newTimer(DefaultFocusDuration),
		now:   time.Now,
		score: MaxFocusScore,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.Timer.onComplete = s.onComplete
	s.last = s.now()
	s.lastActivity = s.last

	return s
}

// Sync brings reading time, the timer and any pending idle penalty up to the
// clock's current time.
func (s *Session) Sync() {
	now := s.now()
	elapsed := now.Sub(s.last)
	if elapsed <= 0 {
		return
	}
	s.last = now

	s.reading += elapsed
	s.Timer.advance(elapsed)

	if !s.idleAt.IsZero() && !now.Before(s.idleAt) {
		s.penalize(idlePenalty)
		s.idleAt = time.Time{}
	}
}

// Activity records user input. Coming back after more than IdleAfter of
// silence costs focus, and a new idle deadline is armed.
func (s *Session) Activity() {
	s.Sync()

	now := s.now()
	if now.Sub(s.lastActivity) > IdleAfter {
		s.penalize(inactivityPenalty)
	}

	s.lastActivity = now
	s.idleAt = now.Add(IdleAfter)
}

func (s *Session) penalize(n int) {
	s.score -= n
	if s.score < 0 {
		s.score = 0
	}
}

func (s *Session) ReadingSeconds() int {
	return int(s.reading / time.Second)
}

func (s *Session) FocusScore() int {
	return s.score
}

type SessionState struct {
	ReadingSeconds int        `json:"readingSeconds"`
	FocusScore     int        `json:"focusScore"`
	Timer          TimerState `json:"timer"`
}

func (s *Session) State() SessionState {
	return SessionState{
		ReadingSeconds: s.ReadingSeconds(),
		FocusScore:     s.score,
		Timer:          s.Timer.State(),
	}
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	t time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{t: start}
}

func (c *ManualClock) Now() time.Time {
	return c.t
}

func (c *ManualClock) Advance(d time.Duration) {
	if d > 0 {
		c.t = c.t.Add(d)
	}
}
