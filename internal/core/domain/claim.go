package domain

import "time"

// ClaimStatus enumerates the lifecycle of a verification claim as observed
// by the submitter: PENDING until the orchestrator resolves it.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "PENDING"
	ClaimApproved ClaimStatus = "APPROVED"
	ClaimRejected ClaimStatus = "REJECTED"
)

// Terminal reports whether the claim has been resolved.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimApproved || s == ClaimRejected
}

// ClaimType names the verification being requested.
type ClaimType string

const (
	ClaimTypeBasic ClaimType = "BASIC"
	ClaimTypeKYC   ClaimType = "KYC"
	ClaimTypeFull  ClaimType = "FULL"
)

// TargetLevel maps a claim type to the verification level it requests.
func (t ClaimType) TargetLevel() (VerificationLevel, bool) {
	switch t {
	case ClaimTypeBasic:
		return LevelBasic, true
	case ClaimTypeKYC:
		return LevelKYC, true
	case ClaimTypeFull:
		return LevelFull, true
	default:
		return LevelUnverified, false
	}
}

// VerificationClaim is a user-submitted request for identity verification,
// pending provider confirmation. Resolved claims are pruned from the
// pending index by the cleanup sweep.
type VerificationClaim struct {
	ID          string
	Subject     string
	ClaimType   ClaimType
	Metadata    string
	Status      ClaimStatus
	RequestedAt time.Time
	ResolvedAt  *time.Time
	// Result carries the provider payload on approval or the rejection
	// reason on denial.
	Result string
}
