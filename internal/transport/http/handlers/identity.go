package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

// IdentityHandler exposes identity registration and verification status.
type IdentityHandler struct {
	identities   *usecase.IdentityService
	verification *usecase.VerificationService
}

func NewIdentityHandler(identities *usecase.IdentityService, verification *usecase.VerificationService) *IdentityHandler {
	return &IdentityHandler{identities: identities, verification: verification}
}

// RegisterRoutes binds identity endpoints.
func (h *IdentityHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Create)
	r.GET("/:did", h.Status)
	r.POST("/:did/approvals", h.Approve)
}

// Create registers a new identity for a DID with a fresh reputation record.
func (h *IdentityHandler) Create(c *gin.Context) {
	var req IdentityCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid identity payload"))
		return
	}

	identity, err := h.identities.Create(c.Request.Context(), strings.TrimSpace(req.DID))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDIDRequired, Status: http.StatusBadRequest, Message: "did is required"},
			{Err: usecase.ErrDIDExists, Status: http.StatusConflict, Message: "did already registered"},
		}, http.StatusInternalServerError, "failed to create identity")
		return
	}

	c.JSON(http.StatusCreated, newIdentityResponse(&identity))
}

// Status returns the identity's verification level by DID.
func (h *IdentityHandler) Status(c *gin.Context) {
	identity, err := h.lookup(c)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, newIdentityResponse(identity))
}

// Approve records a verifier approval toward a target level.
func (h *IdentityHandler) Approve(c *gin.Context) {
	identity, err := h.lookup(c)
	if err != nil {
		return
	}

	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid approval payload"))
		return
	}

	result, err := h.verification.Approve(c.Request.Context(), identity.ID, strings.TrimSpace(req.VerifierID), domain.VerificationLevel(req.TargetLevel))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrVerifierRequired, Status: http.StatusBadRequest, Message: "verifier id is required"},
			{Err: usecase.ErrInvalidTargetLevel, Status: http.StatusBadRequest, Message: "invalid target level"},
		}, http.StatusInternalServerError, "failed to record approval")
		return
	}

	c.JSON(http.StatusOK, ApprovalResponse{
		Level:             int(result.Level),
		LevelName:         result.Level.String(),
		Advanced:          result.Advanced,
		PendingQuorum:     result.PendingQuorum,
		Duplicate:         result.Duplicate,
		DistinctApprovals: result.DistinctApprovals,
	})
}

// lookup resolves the :did path parameter. It writes the error response
// itself so callers can simply return on failure.
func (h *IdentityHandler) lookup(c *gin.Context) (*domain.Identity, error) {
	did := strings.TrimSpace(c.Param("did"))
	if did == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "did is required"))
		return nil, usecase.ErrDIDRequired
	}

	identity, err := h.identities.GetByDID(c.Request.Context(), did)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "identity not found"))
		} else {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load identity"))
		}
		return nil, err
	}

	return identity, nil
}
