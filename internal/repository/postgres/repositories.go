package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Identities *IdentityRepository
	Reputation *ReputationRepository
	Moderation *ModerationRepository
	Appeals    *AppealRepository
	Claims     *ClaimRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Identities: NewIdentityRepository(pool),
		Reputation: NewReputationRepository(pool),
		Moderation: NewModerationRepository(pool),
		Appeals:    NewAppealRepository(pool),
		Claims:     NewClaimRepository(pool),
	}
}
