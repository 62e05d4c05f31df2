package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/form"
	"github.com/codelabx/regdesk/internal/guard"
	"github.com/codelabx/regdesk/internal/kvstore"
	"github.com/codelabx/regdesk/internal/notifications"
	"github.com/codelabx/regdesk/internal/observability"
	"github.com/codelabx/regdesk/internal/pipeline"
	"github.com/gin-gonic/gin"
)

// RegistrationBackend is everything the registration endpoints need from the
// data store. Kept as an interface so tests can substitute a fake.
type RegistrationBackend interface {
	Insert(ctx context.Context, rec registration.Record) error
	ExistsByContact(ctx context.Context, flow, email, phone string) (bool, error)
	CountTeams(ctx context.Context, flow string) (int, error)
	ListByFlow(ctx context.Context, flow string) ([]registration.Record, error)
}

type RegistrationsHandler struct {
	backend  RegistrationBackend
	uploader pipeline.ReceiptUploader
	notifier notifications.Notifier
	markers  kvstore.Store
	prom     *observability.Prom
	log      *slog.Logger
	flows    map[string]registration.Flow
	debounce time.Duration
}

func NewRegistrationsHandler(
	backend RegistrationBackend,
	uploader pipeline.ReceiptUploader,
	notifier notifications.Notifier,
	markers kvstore.Store,
	prom *observability.Prom,
	log *slog.Logger,
	flows []registration.Flow,
	debounce time.Duration,
) *RegistrationsHandler {
	byName := make(map[string]registration.Flow, len(flows))
	for _, f := range flows {
		byName[f.Name] = f
	}

	return &RegistrationsHandler{
		backend:  backend,
		uploader: uploader,
		notifier: notifier,
		markers:  markers,
		prom:     prom,
		log:      log,
		flows:    byName,
		debounce: debounce,
	}
}

func (h *RegistrationsHandler) flowFor(ctx *gin.Context) (registration.Flow, bool) {
	flow, ok := h.flows[ctx.Param("flow")]

	if !ok {
		RespondNotFound(ctx, "Unknown registration flow")
	}

	return flow, ok
}

func (h *RegistrationsHandler) dupGuard(flow registration.Flow) *guard.DuplicateGuard {
	return guard.NewDuplicateGuard(flow.Name, h.backend, h.markers, h.log)
}

// mount builds a fresh form session for one request, running the capacity
// check and the marker short-circuit exactly as a page mount would.
func (h *RegistrationsHandler) mount(ctx context.Context, flow registration.Flow, known form.Contact) *form.Session {
	dup := h.dupGuard(flow)
	capacity := guard.NewCapacityGuard(flow.Name, h.backend, flow.CapacityLimit, h.log)
	pipe := pipeline.New(flow, h.uploader, h.backend, dup, h.notifier, h.prom, h.log)

	return form.NewSession(ctx, flow, known, dup, capacity, pipe, h.debounce, h.log)
}

// Register handles the multipart submission: a "data" field carrying the
// draft JSON plus an optional "receipt" file part.
func (h *RegistrationsHandler) Register(ctx *gin.Context) {
	flow, ok := h.flowFor(ctx)

	if !ok {
		return
	}

	raw := ctx.PostForm("data")

	if raw == "" {
		RespondBadRequest(ctx, "Missing form data", gin.H{"field": "data"})
		return
	}

	var draft registration.Draft

	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		RespondBadRequest(ctx, "Invalid form data", gin.H{"json": "invalid_json_syntax"})
		return
	}

	if fh, err := ctx.FormFile("receipt"); err == nil && fh != nil {
		f, err := fh.Open()

		if err != nil {
			RespondInternal(ctx, "Could not read the uploaded receipt")
			return
		}

		defer func() { _ = f.Close() }()

		draft.Receipt = &registration.Receipt{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Data:        f,
		}
	}

	// detach from the request context but bound the whole run; uploads are
	// the slow part
	cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session := h.mount(cctx, flow, form.Contact{
		Email: draft.LeaderEmail,
		Phone: draft.LeaderPhone,
	})
	defer session.Close()

	switch session.Status() {
	case form.StatusClosed:
		RespondConflict(ctx, "registration_closed", "Registrations are closed, the team quota has been reached.")
		return
	case form.StatusAlreadyRegistered:
		RespondConflict(ctx, "already_registered", "This email or phone number is already registered.")
		return
	}

	// load the parsed draft into the session
	session.Edit(func(d *registration.Draft) { *d = draft })

	res, err := session.Submit(cctx)

	if err != nil {
		h.respondSubmitError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"id":         res.Record.ID,
		"receiptUrl": res.Record.ReceiptURL,
		"summary":    res.Summary,
	})
}

func (h *RegistrationsHandler) respondSubmitError(ctx *gin.Context, err error) {
	var verr *form.ValidationError

	switch {
	case errors.As(err, &verr):
		RespondValidation(ctx, verr.Fields)
	case errors.Is(err, pipeline.ErrReceiptMissing):
		RespondValidation(ctx, map[string]string{"paymentReceipt": "payment receipt is required"})
	case errors.Is(err, registration.ErrAlreadyRegistered):
		RespondConflict(ctx, "already_registered", "This email, phone number or team name is already registered.")
	case errors.Is(err, registration.ErrRegistrationClosed):
		RespondConflict(ctx, "registration_closed", "Registrations are closed, the team quota has been reached.")
	case errors.Is(err, pipeline.ErrUploadFailed):
		RespondError(ctx, http.StatusBadGateway, "upload_failed", "Could not upload the receipt. Please try again.", nil)
	default:
		RespondInternal(ctx, "Could not submit registration")
		h.log.Error("registration submit failed", "err", err)
	}
}

// CheckContact is the on-change duplicate probe the form calls after its
// debounce quiet period. Errors fail open on purpose.
func (h *RegistrationsHandler) CheckContact(ctx *gin.Context) {
	flow, ok := h.flowFor(ctx)

	if !ok {
		return
	}

	email := ctx.Query("email")
	phone := ctx.Query("phone")

	if email == "" && phone == "" {
		RespondBadRequest(ctx, "Provide an email or a phone number to check", nil)
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	dup := h.dupGuard(flow)

	registered := dup.MarkerExists(cctx, email, phone) || dup.CheckBackend(cctx, email, phone)

	ctx.JSON(http.StatusOK, gin.H{"registered": registered})
}

// Capacity reports the aggregate team count against the flow quota.
func (h *RegistrationsHandler) Capacity(ctx *gin.Context) {
	flow, ok := h.flowFor(ctx)

	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	count, err := h.backend.CountTeams(cctx, flow.Name)

	if err != nil {
		// fail open: a backend hiccup must not render the closed state
		h.log.Warn("capacity fetch failed", "flow", flow.Name, "err", err)
		ctx.JSON(http.StatusOK, gin.H{"closed": false})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count":  count,
		"limit":  flow.CapacityLimit,
		"closed": flow.CapacityLimit > 0 && count >= flow.CapacityLimit,
	})
}
