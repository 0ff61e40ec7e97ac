package domain

import "time"

// ModerationAction enumerates the kinds of moderation cases. The values
// double as restriction states, ordered by severity.
type ModerationAction string

const (
	ActionUnban             ModerationAction = "UNBAN"
	ActionWarning           ModerationAction = "WARNING"
	ActionRestriction       ModerationAction = "RESTRICTION"
	ActionSevereRestriction ModerationAction = "SEVERE_RESTRICTION"
	ActionBan               ModerationAction = "BAN"
)

// SystemActor attributes cases filed by the automatic score monitor.
const SystemActor = "system"

const (
	// MinCaseReasonLength and MaxCaseReasonLength bound the case reason.
	MinCaseReasonLength = 1
	MaxCaseReasonLength = 500
)

var actionSeverity = map[ModerationAction]int{
	ActionUnban:             0,
	ActionWarning:           1,
	ActionRestriction:       2,
	ActionSevereRestriction: 3,
	ActionBan:               4,
}

// Valid reports whether the action is a defined moderation action.
func (a ModerationAction) Valid() bool {
	_, ok := actionSeverity[a]
	return ok
}

// Severity orders actions from UNBAN (0) to BAN (4).
func (a ModerationAction) Severity() int {
	return actionSeverity[a]
}

// ReputationDelta returns the fixed reputation penalty applied when a case
// of this action type is filed. UNBAN applies no delta.
func (a ModerationAction) ReputationDelta() int {
	switch a {
	case ActionWarning:
		return -10
	case ActionRestriction:
		return -25
	case ActionSevereRestriction:
		return -50
	case ActionBan:
		return -100
	default:
		return 0
	}
}

// RestrictionTierFor maps a decayed score to the most severe restriction
// tier it warrants, or UNBAN when the score is above every tier. Tiers are
// strictly ordered: SEVERE <=30 < RESTRICTION <=50 < WARNING <=70.
func RestrictionTierFor(score int) ModerationAction {
	switch {
	case score <= 30:
		return ActionSevereRestriction
	case score <= 50:
		return ActionRestriction
	case score <= 70:
		return ActionWarning
	default:
		return ActionUnban
	}
}

// ModerationCase is immutable once created.
type ModerationCase struct {
	CaseID    int64
	Subject   string
	Action    ModerationAction
	Reason    string
	Actor     string
	CreatedAt time.Time
	Resolved  bool
}

// RestrictionState is the current active restriction for an identity,
// separate from the historical case log.
type RestrictionState struct {
	IdentityID string
	State      ModerationAction
	UpdatedAt  time.Time
}
