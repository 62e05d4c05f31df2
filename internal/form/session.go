// Package form owns one registration form session: a single draft plus the
// guards and pipeline around it. The session mirrors what the club site's
// form does in the browser, but headless, so every transition is testable
// against fakes.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/guard"
	"github.com/codelabx/regdesk/internal/pipeline"
)

type Status int

const (
	StatusEditing Status = iota
	StatusClosed
	StatusAlreadyRegistered
	StatusSubmitting
	StatusSucceeded
)

func (s Status) String() string {
	switch s {
	case StatusEditing:
		return "editing"
	case StatusClosed:
		return "closed"
	case StatusAlreadyRegistered:
		return "already_registered"
	case StatusSubmitting:
		return "submitting"
	case StatusSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

var ErrSubmitInFlight = errors.New("a submission is already in progress")

// ValidationError carries the per-field messages back to the caller.
type ValidationError struct {
	Fields registration.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("draft failed validation on %d fields", len(e.Fields))
}

// Contact is what a returning client remembered locally about a previous
// visit. Mount uses it to short-circuit via markers without a network call.
type Contact struct {
	Email string
	Phone string
}

type Session struct {
	mu sync.Mutex

	flow     registration.Flow
	draft    registration.Draft
	status   Status
	dup      *guard.DuplicateGuard
	capacity *guard.CapacityGuard
	pipe     *pipeline.Pipeline
	debounce *guard.Debouncer
	log      *slog.Logger

	// recency counter for debounced contact checks: a lookup result only
	// applies if no edit happened after it was scheduled
	gen uint64

	result pipeline.Result
	done   bool
}

// NewSession is "mount": the capacity check runs exactly once here, then the
// persisted markers are consulted for whatever contact details the client
// remembered. Both checks fail open.
func NewSession(ctx context.Context, flow registration.Flow, known Contact, dup *guard.DuplicateGuard, capacity *guard.CapacityGuard, pipe *pipeline.Pipeline, debounceDelay time.Duration, log *slog.Logger) *Session {
	s := &Session{
		flow:     flow,
		status:   StatusEditing,
		dup:      dup,
		capacity: capacity,
		pipe:     pipe,
		debounce: guard.NewDebouncer(debounceDelay),
		log:      log,
	}

	if capacity.Closed(ctx) {
		s.status = StatusClosed
		return s
	}

	if dup.MarkerExists(ctx, known.Email, known.Phone) {
		s.status = StatusAlreadyRegistered
	}

	return s
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Draft returns a snapshot of the current draft.
func (s *Session) Draft() registration.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Edit applies a mutation to the draft while the form is interactive.
func (s *Session) Edit(fn func(*registration.Draft)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusEditing {
		return
	}

	fn(&s.draft)
}

func (s *Session) SetTeamSize(n int) {
	s.Edit(func(d *registration.Draft) {
		d.SetTeamSize(s.flow, n)
	})
}

func (s *Session) SetLeaderEmail(v string) {
	s.Edit(func(d *registration.Draft) { d.LeaderEmail = v })
	s.scheduleContactCheck()
}

func (s *Session) SetLeaderPhone(v string) {
	s.Edit(func(d *registration.Draft) { d.LeaderPhone = v })
	s.scheduleContactCheck()
}

// scheduleContactCheck debounces the backend duplicate lookup. Rapid edits
// collapse into one query carrying the values at the end of the quiet period,
// and a result computed for stale inputs never overrides newer state.
func (s *Session) scheduleContactCheck() {
	s.mu.Lock()

	if s.status != StatusEditing {
		s.mu.Unlock()
		return
	}

	s.gen++
	gen := s.gen
	email := s.draft.LeaderEmail
	phone := s.draft.LeaderPhone

	s.mu.Unlock()

	s.debounce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		exists := s.dup.CheckBackend(ctx, email, phone)

		s.mu.Lock()
		defer s.mu.Unlock()

		if gen != s.gen {
			// inputs changed while the query was in flight; drop the result
			return
		}

		if exists && s.status == StatusEditing {
			s.status = StatusAlreadyRegistered
		}
	})
}

// Submit runs one pipeline attempt. The session is locked into the
// submitting state for the whole run, so a double click cannot start a second
// concurrent submission of the same draft.
func (s *Session) Submit(ctx context.Context) (pipeline.Result, error) {
	s.mu.Lock()

	switch s.status {
	case StatusClosed:
		s.mu.Unlock()
		return pipeline.Result{}, registration.ErrRegistrationClosed
	case StatusAlreadyRegistered:
		s.mu.Unlock()
		return pipeline.Result{}, registration.ErrAlreadyRegistered
	case StatusSubmitting:
		s.mu.Unlock()
		return pipeline.Result{}, ErrSubmitInFlight
	case StatusSucceeded:
		res := s.result
		s.mu.Unlock()
		return res, nil
	}

	draft := s.draft

	if errs := draft.Validate(s.flow); !errs.Valid() {
		s.mu.Unlock()
		return pipeline.Result{}, &ValidationError{Fields: errs}
	}

	s.status = StatusSubmitting
	s.mu.Unlock()

	// final duplicate gate before any upload or insert happens
	if s.dup.MarkerExists(ctx, draft.LeaderEmail, draft.LeaderPhone) ||
		s.dup.CheckBackend(ctx, draft.LeaderEmail, draft.LeaderPhone) {
		s.setStatus(StatusAlreadyRegistered)
		return pipeline.Result{}, registration.ErrAlreadyRegistered
	}

	res, err := s.pipe.Run(ctx, &draft)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if errors.Is(err, registration.ErrAlreadyRegistered) {
			s.status = StatusAlreadyRegistered
		} else {
			// recoverable: back to the interactive form with the error surfaced
			s.status = StatusEditing
		}
		return pipeline.Result{}, err
	}

	s.status = StatusSucceeded
	s.result = res
	s.done = true
	// the draft is discarded on success
	s.draft = registration.Draft{}

	return res, nil
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Result returns the confirmation details after a successful submit.
func (s *Session) Result() (pipeline.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.done
}

// Close cancels any pending debounced check. Call on unmount.
func (s *Session) Close() {
	s.debounce.Stop()
}
