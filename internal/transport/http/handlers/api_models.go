package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency probe.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// IdentityCreateRequest defines the payload for identity registration.
type IdentityCreateRequest struct {
	DID string `json:"did" binding:"required"`
}

// IdentityResponse describes an identity's verification status.
type IdentityResponse struct {
	ID             string    `json:"id"`
	DID            string    `json:"did"`
	Level          int       `json:"level"`
	LevelName      string    `json:"level_name"`
	CreatedAt      time.Time `json:"created_at"`
	LevelChangedAt time.Time `json:"level_changed_at"`
}

func newIdentityResponse(identity *domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:             identity.ID,
		DID:            identity.DID,
		Level:          int(identity.VerificationLevel),
		LevelName:      identity.VerificationLevel.String(),
		CreatedAt:      identity.CreatedAt,
		LevelChangedAt: identity.LevelChangedAt,
	}
}

// ClaimSubmitRequest defines the payload for claim submission.
type ClaimSubmitRequest struct {
	DID       string `json:"did" binding:"required"`
	ClaimType string `json:"claim_type" binding:"required"`
	Metadata  string `json:"metadata"`
}

// ClaimResponse is the submitter's view of a verification claim. Only the
// status transitions are visible; provider evidence stays internal.
type ClaimResponse struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	ClaimType   string     `json:"claim_type"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

func newClaimResponse(claim *domain.VerificationClaim) ClaimResponse {
	resp := ClaimResponse{
		ID:          claim.ID,
		Subject:     claim.Subject,
		ClaimType:   string(claim.ClaimType),
		Status:      string(claim.Status),
		RequestedAt: claim.RequestedAt,
		ResolvedAt:  claim.ResolvedAt,
	}
	if claim.Status == domain.ClaimRejected {
		resp.Reason = claim.Result
	}
	return resp
}

// ApprovalRequest defines the payload for a verifier approval.
type ApprovalRequest struct {
	VerifierID  string `json:"verifier_id" binding:"required"`
	TargetLevel int    `json:"target_level" binding:"required"`
}

// ApprovalResponse describes the outcome of a verifier approval.
type ApprovalResponse struct {
	Level             int    `json:"level"`
	LevelName         string `json:"level_name"`
	Advanced          bool   `json:"advanced"`
	PendingQuorum     bool   `json:"pending_quorum"`
	Duplicate         bool   `json:"duplicate"`
	DistinctApprovals int    `json:"distinct_approvals"`
}

// ReputationResponse is the decayed view of an identity's score. Score
// includes time decay computed at read time; IsBanned is the stored flag,
// which moves only when a delta crosses the ban threshold. The pair can
// therefore show a recovered score alongside a still-active ban until the
// next delta or a successful appeal.
type ReputationResponse struct {
	IdentityID string    `json:"identity_id"`
	Score      int       `json:"score"`
	IsBanned   bool      `json:"is_banned"`
	LastUpdate time.Time `json:"last_update"`
}

// CaseFileRequest defines the payload for filing a moderation case.
type CaseFileRequest struct {
	DID    string `json:"did" binding:"required"`
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// CaseResponse describes a moderation case.
type CaseResponse struct {
	CaseID    int64     `json:"case_id"`
	Subject   string    `json:"subject"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
	Resolved  bool      `json:"resolved"`
}

func newCaseResponse(mc domain.ModerationCase) CaseResponse {
	return CaseResponse{
		CaseID:    mc.CaseID,
		Subject:   mc.Subject,
		Action:    string(mc.Action),
		Reason:    mc.Reason,
		Actor:     mc.Actor,
		CreatedAt: mc.CreatedAt,
		Resolved:  mc.Resolved,
	}
}

// RestrictionResponse is the current restriction state of an identity.
type RestrictionResponse struct {
	IdentityID string `json:"identity_id"`
	Action     string `json:"action"`
}

// AppealSubmitRequest defines the payload for submitting an appeal.
type AppealSubmitRequest struct {
	DID      string `json:"did" binding:"required"`
	CaseID   int64  `json:"case_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
	Evidence string `json:"evidence"`
}

// AppealVoteRequest defines the payload for a reviewer vote.
type AppealVoteRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// AppealResponse describes an appeal and its tally.
type AppealResponse struct {
	ID          string    `json:"id"`
	IdentityID  string    `json:"identity_id"`
	CaseID      int64     `json:"case_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	Deadline    time.Time `json:"deadline"`
	Approvals   int       `json:"approvals"`
	Rejections  int       `json:"rejections"`
}

func newAppealResponse(appeal domain.Appeal) AppealResponse {
	return AppealResponse{
		ID:          appeal.ID,
		IdentityID:  appeal.IdentityID,
		CaseID:      appeal.CaseID,
		Status:      string(appeal.Status),
		SubmittedAt: appeal.SubmittedAt,
		Deadline:    appeal.Deadline,
		Approvals:   appeal.Approvals,
		Rejections:  appeal.Rejections,
	}
}
