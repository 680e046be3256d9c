package frontend

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"snowcast/weather"
)

const SessionCookie = "snowcast_session"

// State is the position of a session in the submit cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingSubmit
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSubmit:
		return "awaiting_submit"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var ErrSubmitInProgress = errors.New("a submission is already in progress")

var transitions = map[State][]State{
	StateIdle:           {StateAwaitingSubmit},
	StateAwaitingSubmit: {StateSubmitting, StateIdle},
	StateSubmitting:     {StateSucceeded, StateFailed},
	StateSucceeded:      {StateIdle},
	StateFailed:         {StateIdle},
}

// TransitionError reports a move the state machine does not allow.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal session transition %s -> %s", e.From, e.To)
}

type weatherPanel struct {
	report *weather.Report
	err    error
}

// Session is the per-browser form state. Only the current cycle is kept.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	state State

	weatherOnce sync.Once
	weather     weatherPanel
}

func newSession() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now()}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to)
}

func (s *Session) transitionLocked(to State) error {
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return &TransitionError{From: s.state, To: to}
}

// Await returns the session to AwaitingSubmit. A finished cycle is closed first;
// a submission still running is left alone and reported.
func (s *Session) Await() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateAwaitingSubmit:
		return nil
	case StateSucceeded, StateFailed:
		if err := s.transitionLocked(StateIdle); err != nil {
			return err
		}
	}
	return s.transitionLocked(StateAwaitingSubmit)
}

// Finish records the outcome of a submission.
func (s *Session) Finish(err error) error {
	if err != nil {
		return s.Transition(StateFailed)
	}
	return s.Transition(StateSucceeded)
}

// Weather runs fetch on first use and returns the memoised result afterwards.
func (s *Session) Weather(fetch func() (weather.Report, error)) (*weather.Report, error) {
	s.weatherOnce.Do(func() {
		report, err := fetch()
		if err != nil {
			s.weather = weatherPanel{err: err}
			return
		}
		s.weather = weatherPanel{report: &report}
	})
	return s.weather.report, s.weather.err
}

// SessionStore keeps sessions in a size and TTL bounded LRU.
type SessionStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Session]
	ttl   time.Duration
}

func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		cache: expirable.NewLRU[string, *Session](size, nil, ttl),
		ttl:   ttl,
	}
}

// Session returns the caller's session, creating one and setting the cookie when needed.
func (s *SessionStore) Session(w http.ResponseWriter, r *http.Request) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if session, ok := s.cache.Get(cookie.Value); ok {
			return session
		}
	}

	session := newSession()
	s.cache.Add(session.ID, session)
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if s.ttl > 0 {
		cookie.MaxAge = int(s.ttl.Seconds())
	}
	http.SetCookie(w, cookie)
	return session
}

func (s *SessionStore) Len() int {
	return s.cache.Len()
}
