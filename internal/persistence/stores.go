package persistence

import (
	"github.com/spec-kit/referral-service/internal/repository"
	"github.com/spec-kit/referral-service/internal/repository/memory"
)

// Stores groups the repositories the services run against.
type Stores struct {
	Users     repository.UserRepository
	Referrals repository.ReferralRepository
	// Memory is set when no database is configured; data lives only as long as the process.
	Memory bool
}

// OpenStores returns Postgres-backed repositories, or an in-memory store when no pool exists.
func OpenStores(pg *Postgres) Stores {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return Stores{
			Users:     repository.NewUserRepository(pool),
			Referrals: repository.NewReferralRepository(pool),
		}
	}
	store := memory.NewStore()
	return Stores{Users: store.Users(), Referrals: store.Referrals(), Memory: true}
}
