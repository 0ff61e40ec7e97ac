package domain

import "time"

const (
	// InitialScore is assigned when a reputation record is created.
	InitialScore = 100
	// MinScore and MaxScore bound every reputation score.
	MinScore = 0
	MaxScore = 1000
	// BanThreshold is the score below which an identity is banned.
	BanThreshold = 50
	// DecayPointsPerDay is how far the effective score drifts back toward
	// InitialScore per full day without updates.
	DecayPointsPerDay = 1
)

// ReputationScore mirrors the persisted representation in the
// reputation_scores table. IsBanned is derived from the score and stored
// so that ban transitions can be detected atomically.
type ReputationScore struct {
	IdentityID string
	Score      int
	IsBanned   bool
	LastUpdate time.Time
}

// ClampScore bounds a raw score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// DecayedScore returns the effective score at the given instant: the stored
// score drifts back toward InitialScore at DecayPointsPerDay per full day
// since lastUpdate. Integer arithmetic only.
func DecayedScore(score int, lastUpdate, now time.Time) int {
	if now.Before(lastUpdate) {
		return score
	}
	days := int(now.Sub(lastUpdate).Hours() / 24)
	if days <= 0 {
		return score
	}
	drift := days * DecayPointsPerDay
	switch {
	case score < InitialScore:
		score += drift
		if score > InitialScore {
			score = InitialScore
		}
	case score > InitialScore:
		score -= drift
		if score < InitialScore {
			score = InitialScore
		}
	}
	return score
}
