package webapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voicegate-server-go/internal/domain/auth"
	"voicegate-server-go/internal/domain/binding/aggregate"
	"voicegate-server-go/internal/domain/voiceprint"
	"voicegate-server-go/internal/platform/logging"
)

// AuthService exposes the authentication pipeline over HTTP.
type AuthService struct {
	orchestrator *auth.Orchestrator
	logger       *logging.Logger
}

// NewAuthService builds the HTTP facade for the orchestrator.
func NewAuthService(orchestrator *auth.Orchestrator, logger *logging.Logger) (*AuthService, error) {
	return &AuthService{
		orchestrator: orchestrator,
		logger:       logger,
	}, nil
}

// Start registers all auth routes on the API group.
func (s *AuthService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.POST("/auth/enroll", s.handleEnroll)
	apiGroup.POST("/auth/verify", s.handleVerify)
	apiGroup.POST("/auth/revoke", s.handleRevoke)
	apiGroup.GET("/auth/bindings/:user_id", s.handleListBindings)
	apiGroup.GET("/auth/session", s.handleSession)

	s.logger.InfoTag("HTTP", "auth routes registered")
	return nil
}

type enrollRequest struct {
	UserID      string    `json:"user_id" binding:"required"`
	DeviceID    string    `json:"device_id" binding:"required"`
	Fingerprint string    `json:"fingerprint"`
	Sample      []float64 `json:"sample" binding:"required"`
}

type verifyRequest struct {
	UserID      string    `json:"user_id" binding:"required"`
	DeviceID    string    `json:"device_id" binding:"required"`
	Fingerprint string    `json:"fingerprint"`
	Sample      []float64 `json:"sample" binding:"required"`
}

type revokeRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

type bindingView struct {
	DeviceID       string `json:"device_id"`
	Fingerprint    string `json:"fingerprint"`
	TrustLevel     string `json:"trust_level"`
	BoundAt        string `json:"bound_at"`
	LastVerifiedAt string `json:"last_verified_at"`
	RevokedAt      string `json:"revoked_at,omitempty"`
}

func toBindingView(b *aggregate.DeviceBinding) bindingView {
	view := bindingView{
		DeviceID:       b.DeviceID,
		Fingerprint:    b.Fingerprint,
		TrustLevel:     string(b.TrustLevel),
		BoundAt:        b.BoundAt.Format("2006-01-02 15:04:05"),
		LastVerifiedAt: b.LastVerifiedAt.Format("2006-01-02 15:04:05"),
	}
	if b.RevokedAt != nil {
		view.RevokedAt = b.RevokedAt.Format("2006-01-02 15:04:05")
	}
	return view
}

func (s *AuthService) handleEnroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", gin.H{"error": err.Error()})
		return
	}

	binding, err := s.orchestrator.Enroll(c.Request.Context(), req.UserID, req.DeviceID, req.Fingerprint, req.Sample)
	if err != nil {
		s.respondAuthError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, toBindingView(binding), "device enrolled")
}

func (s *AuthService) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", gin.H{"error": err.Error()})
		return
	}

	result, err := s.orchestrator.VerifyLogin(c.Request.Context(), auth.VerifyRequest{
		UserID:      req.UserID,
		DeviceID:    req.DeviceID,
		Fingerprint: req.Fingerprint,
		Sample:      req.Sample,
	})
	if err != nil {
		s.respondAuthError(c, err)
		return
	}

	switch result.Outcome {
	case auth.OutcomeAccept:
		respondSuccess(c, http.StatusOK, gin.H{
			"outcome":     string(result.Outcome),
			"token":       result.Token,
			"rebound":     result.Rebound,
			"trust_level": string(result.TrustLevel),
		}, "authentication accepted")
	case auth.OutcomeRebindRequired:
		respondError(c, http.StatusUnauthorized, "re-enrollment required",
			gin.H{"outcome": string(result.Outcome)})
	default:
		respondError(c, http.StatusUnauthorized, "authentication rejected",
			gin.H{"outcome": string(result.Outcome)})
	}
}

func (s *AuthService) handleRevoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", gin.H{"error": err.Error()})
		return
	}

	if err := s.orchestrator.Revoke(c.Request.Context(), req.UserID, req.DeviceID); err != nil {
		s.respondAuthError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, nil, "binding revoked")
}

func (s *AuthService) handleListBindings(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "missing user id", nil)
		return
	}

	bindings, err := s.orchestrator.ListBindings(c.Request.Context(), userID)
	if err != nil {
		s.respondAuthError(c, err)
		return
	}

	views := make([]bindingView, 0, len(bindings))
	for _, binding := range bindings {
		views = append(views, toBindingView(binding))
	}
	respondSuccess(c, http.StatusOK, views, "bindings listed")
}

func (s *AuthService) handleSession(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		respondError(c, http.StatusUnauthorized, "missing bearer token", nil)
		return
	}
	token := strings.TrimPrefix(header, "Bearer ")

	userID, deviceID, err := s.orchestrator.VerifySessionToken(token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid session token", nil)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": userID, "device_id": deviceID}, "session valid")
}

// respondAuthError maps the domain failure taxonomy onto HTTP statuses.
// Messages stay generic; scores and internal codes never leave the server.
func (s *AuthService) respondAuthError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, auth.ErrBindingNotFound):
		respondError(c, http.StatusNotFound, "enrollment required", nil)
	case stderrors.Is(err, auth.ErrAlreadyEnrolled):
		respondError(c, http.StatusConflict, "device already enrolled", nil)
	case stderrors.Is(err, voiceprint.ErrUnavailable):
		respondError(c, http.StatusUnprocessableEntity, "cannot verify voice, please retry", nil)
	case stderrors.Is(err, auth.ErrTransientConflict):
		respondError(c, http.StatusServiceUnavailable, "please try again", nil)
	default:
		s.logger.ErrorTag("HTTP", "request failed: %v", err)
		respondError(c, http.StatusInternalServerError, "internal error", nil)
	}
}
