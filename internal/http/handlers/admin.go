package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/http/middlewares"
	"github.com/codelabx/regdesk/internal/security"
	"github.com/gin-gonic/gin"
)

type TokenIssuer interface {
	GenerateAccessToken(email, role string) (string, error)
}

// AdminHandler serves the login endpoint and the read-only registration
// listings behind it. There is a single configured admin account.
type AdminHandler struct {
	backend      RegistrationBackend
	tokens       TokenIssuer
	adminEmail   string
	passwordHash string
	log          *slog.Logger
}

func NewAdminHandler(backend RegistrationBackend, tokens TokenIssuer, adminEmail, passwordHash string, log *slog.Logger) *AdminHandler {
	return &AdminHandler{
		backend:      backend,
		tokens:       tokens,
		adminEmail:   adminEmail,
		passwordHash: passwordHash,
		log:          log,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *AdminHandler) Login(ctx *gin.Context) {
	var req loginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Email != h.adminEmail || security.CheckPassword(h.passwordHash, req.Password) != nil {
		// same response for wrong email and wrong password
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid email or password")
		return
	}

	token, err := h.tokens.GenerateAccessToken(req.Email, "admin")

	if err != nil {
		h.log.Error("access token generation failed", "err", err)
		RespondInternal(ctx, "Could not issue token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"accessToken": token})
}

// ListRegistrations returns every record for one flow, newest first.
func (h *AdminHandler) ListRegistrations(ctx *gin.Context) {
	flow := ctx.DefaultQuery("flow", "hackathon")

	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	records, err := h.backend.ListByFlow(cctx, flow)

	if err != nil {
		h.log.Error("list registrations failed", "flow", flow, "err", err)
		RespondInternal(ctx, "Could not list registrations")
		return
	}

	if records == nil {
		records = []registration.Record{}
	}

	// audit trail: which admin pulled the list
	if email, ok := middlewares.EmailFromContext(ctx); ok {
		h.log.Info("registrations listed", "admin", email, "flow", flow, "count", len(records))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"flow":          flow,
		"count":         len(records),
		"registrations": records,
	})
}
