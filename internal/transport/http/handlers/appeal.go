package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Adekabang/DigitalID-sub000/internal/repository"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

// AppealHandler exposes appeal submission, voting, and status lookup.
type AppealHandler struct {
	appeals    *usecase.AppealService
	moderation *usecase.ModerationService
	identities *usecase.IdentityService
}

func NewAppealHandler(appeals *usecase.AppealService, moderation *usecase.ModerationService, identities *usecase.IdentityService) *AppealHandler {
	return &AppealHandler{appeals: appeals, moderation: moderation, identities: identities}
}

// RegisterRoutes binds appeal endpoints.
func (h *AppealHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Submit)
	r.GET("/:id", h.Get)
	r.POST("/:id/votes", h.Vote)
}

// Submit opens an appeal against an active restriction.
func (h *AppealHandler) Submit(c *gin.Context) {
	var req AppealSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid appeal payload"))
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

	appeal, err := h.appeals.Submit(c.Request.Context(), identity.ID, req.CaseID, req.Reason, req.Evidence)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNothingToAppeal, Status: http.StatusConflict, Message: "no active restriction to appeal"},
			{Err: usecase.ErrCooldownActive, Status: http.StatusTooManyRequests, Message: "appeal cooldown active"},
			{Err: usecase.ErrCaseNotFound, Status: http.StatusNotFound, Message: "moderation case not found"},
		}, http.StatusInternalServerError, "failed to submit appeal")
		return
	}

	c.JSON(http.StatusCreated, newAppealResponse(appeal))
}

// Get returns an appeal with its running tally.
func (h *AppealHandler) Get(c *gin.Context) {
	appealID := strings.TrimSpace(c.Param("id"))

	appeal, err := h.appeals.Get(c.Request.Context(), appealID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAppealNotFound, Status: http.StatusNotFound, Message: "appeal not found"},
		}, http.StatusInternalServerError, "failed to load appeal")
		return
	}

	c.JSON(http.StatusOK, newAppealResponse(*appeal))
}

// Vote records a reviewer's vote. The actor header names the reviewer and
// must belong to the configured moderator set.
func (h *AppealHandler) Vote(c *gin.Context) {
	reviewer := strings.TrimSpace(c.GetHeader(ActorHeader))
	if reviewer == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "actor header is required"))
		return
	}
	if !h.moderation.IsModerator(reviewer) {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "reviewer is not a moderator"))
		return
	}

	var req AppealVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Approve == nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid vote payload"))
		return
	}

	appeal, err := h.appeals.Vote(c.Request.Context(), strings.TrimSpace(c.Param("id")), reviewer, *req.Approve)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAppealNotFound, Status: http.StatusNotFound, Message: "appeal not found"},
			{Err: usecase.ErrNotPending, Status: http.StatusConflict, Message: "appeal is not pending"},
			{Err: usecase.ErrDeadlineExpired, Status: http.StatusConflict, Message: "appeal review deadline expired"},
			{Err: usecase.ErrDuplicateVote, Status: http.StatusConflict, Message: "reviewer already voted"},
		}, http.StatusInternalServerError, "failed to record vote")
		return
	}

	c.JSON(http.StatusOK, newAppealResponse(appeal))
}
