package domain

import "time"

// AppealStatus enumerates the lifecycle of an appeal. APPROVED and
// REJECTED are terminal.
type AppealStatus string

const (
	AppealPending  AppealStatus = "PENDING"
	AppealApproved AppealStatus = "APPROVED"
	AppealRejected AppealStatus = "REJECTED"
)

const (
	// AppealCooldown is the minimum gap between two appeals by the same
	// identity, measured from the previous appeal's submission time.
	AppealCooldown = 30 * 24 * time.Hour
	// AppealReviewPeriod is how long reviewers have to vote.
	AppealReviewPeriod = 7 * 24 * time.Hour
	// AppealMinVotes is the number of votes required before an appeal
	// finalizes.
	AppealMinVotes = 3
	// AppealApprovalBonus is granted to the identity when an appeal is
	// approved.
	AppealApprovalBonus = 20
)

// Terminal reports whether the status admits no further transitions.
func (s AppealStatus) Terminal() bool {
	return s == AppealApproved || s == AppealRejected
}

// Appeal is one entry in an identity's append-only appeal list.
type Appeal struct {
	ID          string
	IdentityID  string
	CaseID      int64
	Reason      string
	Evidence    string
	Status      AppealStatus
	SubmittedAt time.Time
	Deadline    time.Time
	Approvals   int
	Rejections  int
}

// VoteCount is the number of votes cast so far.
func (a Appeal) VoteCount() int {
	return a.Approvals + a.Rejections
}

// QuorumReached reports whether enough votes were cast to finalize.
func (a Appeal) QuorumReached() bool {
	return a.VoteCount() >= AppealMinVotes
}

// MajorityApproved applies the strict-majority rule over votes cast so far.
func (a Appeal) MajorityApproved() bool {
	return a.Approvals*100 > a.VoteCount()*50
}

// AppealVote records a single reviewer's vote.
type AppealVote struct {
	AppealID   string
	ReviewerID string
	Approve    bool
	CreatedAt  time.Time
}
