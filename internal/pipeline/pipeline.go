// Package pipeline runs the submission sequence of a validated registration
// draft: upload the receipt, insert the row, persist the already-registered
// markers, then fire the best-effort confirmation notification. Side effects
// are strictly ordered; nothing is written before the upload completes and
// nothing is notified before the row is committed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/guard"
	"github.com/codelabx/regdesk/internal/notifications"
	"github.com/codelabx/regdesk/internal/observability"
)

type State int

const (
	StateIdle State = iota
	StateUploading
	StateInserting
	StateNotifying
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateInserting:
		return "inserting"
	case StateNotifying:
		return "notifying"
	case StateSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

var (
	// precondition: submit is rejected before any network call is made
	ErrReceiptMissing = errors.New("payment receipt is missing")
	// recoverable: the user may retry, no partial state was persisted
	ErrUploadFailed = errors.New("receipt upload failed")
)

type ReceiptUploader interface {
	Upload(ctx context.Context, flow string, r *registration.Receipt) (string, error)
}

type Inserter interface {
	Insert(ctx context.Context, rec registration.Record) error
}

type Result struct {
	Record  registration.Record
	Summary registration.Summary
}

type Pipeline struct {
	flow     registration.Flow
	uploader ReceiptUploader
	repo     Inserter
	dup      *guard.DuplicateGuard
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger

	mu    sync.Mutex
	state State

	// optional observer for tests and UI state mirroring
	onTransition func(State)

	// lets callers (tests, graceful shutdown) wait for in-flight notifications
	notifyWG sync.WaitGroup
}

func New(flow registration.Flow, uploader ReceiptUploader, repo Inserter, dup *guard.DuplicateGuard, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Pipeline {
	return &Pipeline{
		flow:     flow,
		uploader: uploader,
		repo:     repo,
		dup:      dup,
		notifier: notifier,
		prom:     prom,
		log:      log,
		state:    StateIdle,
	}
}

func (p *Pipeline) OnTransition(fn func(State)) {
	p.onTransition = fn
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transition(ctx context.Context, to State) {
	p.mu.Lock()
	p.state = to
	p.mu.Unlock()

	p.log.DebugContext(ctx, "pipeline transition", "state", to.String())

	if p.onTransition != nil {
		p.onTransition(to)
	}
}

// Run executes one submission attempt for an already-validated draft. Every
// error path returns the pipeline to idle; only a fully committed row reaches
// the succeeded state.
func (p *Pipeline) Run(ctx context.Context, d *registration.Draft) (Result, error) {
	if p.flow.RequireReceipt && d.Receipt == nil {
		// reject before entering the uploading state, no network call happens
		return Result{}, ErrReceiptMissing
	}

	receiptURL := ""

	if d.Receipt != nil {
		p.transition(ctx, StateUploading)

		url, err := p.uploader.Upload(ctx, p.flow.Name, d.Receipt)

		if err != nil {
			p.transition(ctx, StateIdle)
			return Result{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}

		receiptURL = url
	}

	p.transition(ctx, StateInserting)

	rec := registration.NewRecordFromDraft(p.flow, d, receiptURL)

	err := p.repo.Insert(ctx, rec)

	if err != nil {
		p.transition(ctx, StateIdle)

		if errors.Is(err, registration.ErrAlreadyRegistered) {
			// the backend just proved a matching record exists, which is the
			// same evidence the on-change check acts on, so persist markers
			p.dup.WriteMarkers(ctx, d.LeaderEmail, d.LeaderPhone)
			return Result{}, registration.ErrAlreadyRegistered
		}

		return Result{}, fmt.Errorf("insert registration: %w", err)
	}

	// markers go down before the notification so a crash mid-notify still
	// leaves the client aware of its registered status
	p.dup.WriteMarkers(ctx, d.LeaderEmail, d.LeaderPhone)

	p.transition(ctx, StateNotifying)
	p.notify(ctx, rec)

	p.transition(ctx, StateSucceeded)

	return Result{
		Record:  rec,
		Summary: rec.Summary(),
	}, nil
}

// notify fires the confirmation call as a best-effort side task. The overall
// submission result never waits on it; failures are logged and counted, never
// surfaced, never retried.
func (p *Pipeline) notify(ctx context.Context, rec registration.Record) {
	input := notifications.SendConfirmationInput{
		TeamName:    rec.TeamName,
		LeaderName:  rec.LeaderName,
		LeaderEmail: rec.LeaderEmail,
		TeamSize:    rec.TeamSize,
	}

	// detach from the request context so a client disconnect right after
	// submit does not cancel the email
	sendCtx := context.WithoutCancel(ctx)

	p.notifyWG.Add(1)

	go func() {
		defer p.notifyWG.Done()

		cctx, cancel := context.WithTimeout(sendCtx, 10*time.Second)
		defer cancel()

		err := p.notifier.SendConfirmation(cctx, input)

		if err != nil {
			p.countNotify(classifyNotifyErr(err))
			p.log.Warn("confirmation notification failed", "team", rec.TeamName, "err", err)
			return
		}

		p.countNotify("sent")
		p.log.Info("confirmation notification sent", "team", rec.TeamName)
	}()
}

func (p *Pipeline) countNotify(result string) {
	if p.prom != nil {
		p.prom.NotifyResults.WithLabelValues(result).Inc()
	}
}

func classifyNotifyErr(err error) string {
	if errors.Is(err, notifications.ErrCircuitOpen) {
		return "circuit_open"
	}
	return "failed"
}

// WaitNotify blocks until in-flight notification tasks finish.
func (p *Pipeline) WaitNotify() {
	p.notifyWG.Wait()
}
