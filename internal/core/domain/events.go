package domain

import "time"

// ClaimSubmittedEvent represents the payload for digitalid.claim.submitted messages.
type ClaimSubmittedEvent struct {
	EventID     string
	ClaimID     string
	Subject     string
	ClaimType   ClaimType
	RequestedAt time.Time
	Metadata    map[string]any
}

// ClaimResolvedEvent represents the payload for digitalid.claim.resolved messages.
type ClaimResolvedEvent struct {
	EventID    string
	ClaimID    string
	Subject    string
	Status     ClaimStatus
	Result     string
	ResolvedAt time.Time
	Metadata   map[string]any
}

// VerificationLevelChangedEvent represents the payload for
// digitalid.verification.level_changed messages.
type VerificationLevelChangedEvent struct {
	EventID       string
	IdentityID    string
	DID           string
	PreviousLevel VerificationLevel
	NewLevel      VerificationLevel
	VerifierID    string
	ChangedAt     time.Time
	Metadata      map[string]any
}

// BanStatusChangedEvent fires once per ban boundary crossing, never while
// the identity remains on the same side of the threshold.
type BanStatusChangedEvent struct {
	EventID    string
	IdentityID string
	Banned     bool
	Score      int
	ChangedAt  time.Time
	Metadata   map[string]any
}

// CaseFiledEvent represents the payload for digitalid.moderation.case_filed messages.
type CaseFiledEvent struct {
	EventID  string
	CaseID   int64
	Subject  string
	Action   ModerationAction
	Actor    string
	FiledAt  time.Time
	Metadata map[string]any
}

// AppealFinalizedEvent represents the payload for digitalid.appeal.finalized messages.
type AppealFinalizedEvent struct {
	EventID     string
	AppealID    string
	IdentityID  string
	CaseID      int64
	Status      AppealStatus
	Approvals   int
	Rejections  int
	FinalizedAt time.Time
	Metadata    map[string]any
}
