package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Adekabang/DigitalID-sub000/internal/repository"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

// ReputationHandler exposes the decayed reputation view.
type ReputationHandler struct {
	reputation *usecase.ReputationService
	identities *usecase.IdentityService
}

func NewReputationHandler(reputation *usecase.ReputationService, identities *usecase.IdentityService) *ReputationHandler {
	return &ReputationHandler{reputation: reputation, identities: identities}
}

// RegisterRoutes binds reputation endpoints under the identities group.
func (h *ReputationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/:did/reputation", h.Get)
}

// Get returns the identity's current score with decay applied.
func (h *ReputationHandler) Get(c *gin.Context) {
	did := strings.TrimSpace(c.Param("did"))

	identity, err := h.identities.GetByDID(c.Request.Context(), did)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "identity not found"))
		} else {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load identity"))
		}
		return
	}

	record, err := h.reputation.Get(c.Request.Context(), identity.ID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNotInitialized, Status: http.StatusNotFound, Message: "reputation not initialized"},
		}, http.StatusInternalServerError, "failed to load reputation")
		return
	}

	c.JSON(http.StatusOK, ReputationResponse{
		IdentityID: record.IdentityID,
		Score:      record.Score,
		IsBanned:   record.IsBanned,
		LastUpdate: record.LastUpdate,
	})
}
