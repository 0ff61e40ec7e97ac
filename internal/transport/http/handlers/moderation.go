package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/repository"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

// ActorHeader identifies the caller on moderation and appeal endpoints.
const ActorHeader = "X-Actor-ID"

// ModerationHandler exposes case filing, case history, and restriction
// management.
type ModerationHandler struct {
	moderation *usecase.ModerationService
	identities *usecase.IdentityService
}

func NewModerationHandler(moderation *usecase.ModerationService, identities *usecase.IdentityService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, identities: identities}
}

// RegisterRoutes binds moderation endpoints.
func (h *ModerationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/cases", h.FileCase)
	r.GET("/cases/:id", h.GetCase)
	r.GET("/:did/restriction", h.Restriction)
	r.DELETE("/:did/restriction", h.RemoveRestriction)
}

// RegisterIdentityRoutes binds the case history listing under identities.
func (h *ModerationHandler) RegisterIdentityRoutes(r *gin.RouterGroup) {
	r.GET("/:did/cases", h.ListCases)
}

// FileCase records a moderation case against an identity. The actor header
// must name a configured moderator.
func (h *ModerationHandler) FileCase(c *gin.Context) {
	actor := strings.TrimSpace(c.GetHeader(ActorHeader))
	if actor == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "actor header is required"))
		return
	}
	if !h.moderation.IsModerator(actor) {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "actor is not a moderator"))
		return
	}

	var req CaseFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid case payload"))
		return
	}

	identity, ok := h.resolveDID(c, req.DID)
	if !ok {
		return
	}

	action := domain.ModerationAction(strings.ToUpper(strings.TrimSpace(req.Action)))

	caseID, err := h.moderation.FileCase(c.Request.Context(), identity.ID, action, req.Reason, actor)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidAction, Status: http.StatusBadRequest, Message: "invalid moderation action"},
			{Err: usecase.ErrUnbanNotFilable, Status: http.StatusBadRequest, Message: "unban cannot be filed as a case"},
			{Err: usecase.ErrInvalidReason, Status: http.StatusBadRequest, Message: "case reason must be between 1 and 500 characters"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "failed to file case")
		return
	}

	mc, err := h.moderation.GetCase(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load filed case"))
		return
	}

	c.JSON(http.StatusCreated, newCaseResponse(*mc))
}

// GetCase returns a single case by id.
func (h *ModerationHandler) GetCase(c *gin.Context) {
	caseID, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid case id"))
		return
	}

	mc, err := h.moderation.GetCase(c.Request.Context(), caseID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "case not found"},
		}, http.StatusInternalServerError, "failed to load case")
		return
	}

	c.JSON(http.StatusOK, newCaseResponse(*mc))
}

// ListCases returns the identity's full case history, newest first.
func (h *ModerationHandler) ListCases(c *gin.Context) {
	identity, ok := h.resolveDID(c, c.Param("did"))
	if !ok {
		return
	}

	cases, err := h.moderation.ListCases(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list cases"))
		return
	}

	resp := make([]CaseResponse, 0, len(cases))
	for _, mc := range cases {
		resp = append(resp, newCaseResponse(mc))
	}

	c.JSON(http.StatusOK, resp)
}

// Restriction returns the identity's current restriction state.
func (h *ModerationHandler) Restriction(c *gin.Context) {
	identity, ok := h.resolveDID(c, c.Param("did"))
	if !ok {
		return
	}

	state, err := h.moderation.RestrictionStateOf(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load restriction state"))
		return
	}

	c.JSON(http.StatusOK, RestrictionResponse{
		IdentityID: identity.ID,
		Action:     string(state),
	})
}

// RemoveRestriction lifts the identity's active restriction. Ban removal
// authorization is enforced by the moderation service.
func (h *ModerationHandler) RemoveRestriction(c *gin.Context) {
	actor := strings.TrimSpace(c.GetHeader(ActorHeader))
	if actor == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "actor header is required"))
		return
	}

	identity, ok := h.resolveDID(c, c.Param("did"))
	if !ok {
		return
	}

	if err := h.moderation.RemoveRestriction(c.Request.Context(), identity.ID, actor); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUnauthorized, Status: http.StatusForbidden, Message: "caller is not authorized to remove this restriction"},
			{Err: usecase.ErrNoActiveRestriction, Status: http.StatusNotFound, Message: "no active restriction"},
		}, http.StatusInternalServerError, "failed to remove restriction")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "restriction removed"})
}

func (h *ModerationHandler) resolveDID(c *gin.Context, did string) (*domain.Identity, bool) {
	did = strings.TrimSpace(did)
	if did == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "did is required"))
		return nil, false
	}

	identity, err := h.identities.GetByDID(c.Request.Context(), did)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "identity not found"))
		} else {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load identity"))
		}
		return nil, false
	}

	return identity, true
}
