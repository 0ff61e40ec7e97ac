package domain

import "time"

// VerificationLevel enumerates the trust levels an identity can hold.
// Levels only ever increase; the numeric values are part of the external
// contract and must not drift between the state machine and serialization.
type VerificationLevel int

const (
	LevelUnverified VerificationLevel = 0
	LevelBasic      VerificationLevel = 1
	LevelKYC        VerificationLevel = 2
	LevelFull       VerificationLevel = 3
)

// ApprovalQuorum is the number of distinct verifiers required before an
// identity may advance to LevelKYC or beyond.
const ApprovalQuorum = 2

var levelNames = map[VerificationLevel]string{
	LevelUnverified: "UNVERIFIED",
	LevelBasic:      "BASIC_VERIFIED",
	LevelKYC:        "KYC_VERIFIED",
	LevelFull:       "FULL_VERIFIED",
}

// String returns the fixed wire name for the level.
func (l VerificationLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether the level is one of the four defined levels.
func (l VerificationLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// RequiresQuorum reports whether advancement to this level needs the
// two-distinct-verifier rule.
func (l VerificationLevel) RequiresQuorum() bool {
	return l >= LevelKYC
}

// Identity mirrors the persisted representation in the identities table.
type Identity struct {
	ID                string
	DID               string
	VerificationLevel VerificationLevel
	CreatedAt         time.Time
	UpdatedAt         time.Time
	// LevelChangedAt records when the identity last changed level. The
	// quorum rule requires at least one approval newer than this instant
	// before the next advancement.
	LevelChangedAt time.Time
}

// VerifierApproval is one distinct verifier's recorded approval for an
// identity. Approvals accumulate and are never reset.
type VerifierApproval struct {
	IdentityID string
	VerifierID string
	CreatedAt  time.Time
}
