package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/orchestrator"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

// ClaimHandler exposes verification claim submission and status lookup.
type ClaimHandler struct {
	claims     *orchestrator.Orchestrator
	identities *usecase.IdentityService
}

func NewClaimHandler(claims *orchestrator.Orchestrator, identities *usecase.IdentityService) *ClaimHandler {
	return &ClaimHandler{claims: claims, identities: identities}
}

// RegisterRoutes binds claim endpoints.
func (h *ClaimHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Submit)
	r.GET("/:id", h.Get)
}

// Submit accepts a verification claim and schedules processing. The claim
// comes back PENDING; resolution is observable via the status endpoint.
func (h *ClaimHandler) Submit(c *gin.Context) {
	var req ClaimSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid claim payload"))
		return
	}

	identity, err := h.identities.GetByDID(c.Request.Context(), strings.TrimSpace(req.DID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "identity not found"))
		} else {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load identity"))
		}
		return
	}

	claimType := domain.ClaimType(strings.ToUpper(strings.TrimSpace(req.ClaimType)))

	claim, err := h.claims.SubmitClaim(c.Request.Context(), identity.ID, claimType, req.Metadata)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: orchestrator.ErrInvalidClaimType, Status: http.StatusBadRequest, Message: "invalid claim type"},
			{Err: orchestrator.ErrSubjectRequired, Status: http.StatusBadRequest, Message: "subject is required"},
			{Err: orchestrator.ErrSubjectNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "failed to submit claim")
		return
	}

	c.JSON(http.StatusAccepted, newClaimResponse(claim))
}

// Get returns the submitter's view of a claim.
func (h *ClaimHandler) Get(c *gin.Context) {
	claimID := strings.TrimSpace(c.Param("id"))
	if claimID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "claim id is required"))
		return
	}

	claim, err := h.claims.GetClaim(c.Request.Context(), claimID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "claim not found"))
		} else {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load claim"))
		}
		return
	}

	c.JSON(http.StatusOK, newClaimResponse(claim))
}
