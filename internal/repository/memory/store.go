// Package memory provides process-local implementations of the repository interfaces.
// It backs the service when no Postgres DSN is configured and doubles as the test store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/repository"
)

// Store holds users and referrals behind a single lock.
type Store struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	referrals map[string]domain.Referral
	now       func() time.Time
	seq       int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		referrals: make(map[string]domain.Referral),
		now:       time.Now,
	}
}

// SetClock overrides the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users exposes the store as a UserRepository.
func (s *Store) Users() repository.UserRepository {
	return userStore{s}
}

// Referrals exposes the store as a ReferralRepository.
func (s *Store) Referrals() repository.ReferralRepository {
	return referralStore{s}
}

// stamp returns a strictly increasing creation time so newest-first ordering is stable.
func (s *Store) stamp() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq) * time.Nanosecond)
}

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user *domain.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := domain.NormalizeEmail(user.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = s.stamp()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (u userStore) UpdateProfile(_ context.Context, user *domain.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	email := domain.NormalizeEmail(user.Email)
	for id, existing := range s.users {
		if id != user.ID && existing.Email == email {
			return repository.ErrDuplicate
		}
	}
	current.Name = user.Name
	current.Email = email
	current.Role = user.Role
	current.Status = user.Status
	current.UpdatedAt = s.now()
	s.users[user.ID] = current
	user.Email = email
	user.UpdatedAt = current.UpdatedAt
	return nil
}

func (u userStore) UpdateCredential(_ context.Context, id string, credential domain.Credential) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	current.Credential = credential
	current.UpdatedAt = s.now()
	s.users[id] = current
	return nil
}

func (u userStore) CompleteSetup(_ context.Context, id string, digest string, acceptedAt time.Time) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if current.SetupState() == domain.SetupCompleted {
		return repository.ErrSetupAlreadyCompleted
	}
	current.Credential = domain.HashedCredential(digest)
	current.FirstAccessPending = false
	current.TermsAccepted = true
	current.TermsAcceptedAt = &acceptedAt
	current.UpdatedAt = s.now()
	s.users[id] = current
	return nil
}

func (u userStore) TouchLastAccess(_ context.Context, id string, at time.Time) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return nil
	}
	current.LastAccessAt = &at
	s.users[id] = current
	return nil
}

func (u userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (u userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = domain.NormalizeEmail(email)
	for _, user := range s.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (u userStore) List(_ context.Context) ([]domain.User, error) {
	return u.filter(func(domain.User) bool { return true }, true), nil
}

func (u userStore) ListLegacyCredentials(_ context.Context) ([]domain.User, error) {
	return u.filter(func(user domain.User) bool { return user.Credential.IsLegacy() }, false), nil
}

func (u userStore) filter(keep func(domain.User) bool, newestFirst bool) []domain.User {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.User
	for _, user := range s.users {
		if keep(user) {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if newestFirst {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (u userStore) Delete(_ context.Context, id string) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

type referralStore struct{ s *Store }

func (r referralStore) Create(_ context.Context, referral *domain.Referral) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	referral.ID = uuid.NewString()
	referral.OwnerEmail = domain.NormalizeEmail(referral.OwnerEmail)
	referral.CreatedAt = s.stamp()
	referral.UpdatedAt = referral.CreatedAt
	s.referrals[referral.ID] = cloneReferral(*referral)
	return nil
}

func (r referralStore) GetByID(_ context.Context, id string) (*domain.Referral, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	referral, ok := s.referrals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := cloneReferral(referral)
	return &found, nil
}

func (r referralStore) List(_ context.Context, filter repository.ReferralFilter) ([]domain.Referral, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owner string
	if filter.OwnerEmail != nil {
		owner = domain.NormalizeEmail(*filter.OwnerEmail)
	}
	var result []domain.Referral
	for _, referral := range s.referrals {
		if filter.OwnerEmail != nil && referral.OwnerEmail != owner {
			continue
		}
		result = append(result, cloneReferral(referral))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r referralStore) Update(_ context.Context, id string, patch domain.ReferralPatch) (*domain.Referral, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.referrals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	patch.Apply(&current)
	current.UpdatedAt = s.now()
	s.referrals[id] = current
	updated := cloneReferral(current)
	return &updated, nil
}

func (r referralStore) Delete(_ context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.referrals[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.referrals, id)
	return nil
}

func (r referralStore) ExpireStale(_ context.Context, from, to domain.ReferralStatus, cutoff, now time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for id, referral := range s.referrals {
		if referral.Status != from || referral.LastStatusChangeAt == nil {
			continue
		}
		if referral.LastStatusChangeAt.After(cutoff) {
			continue
		}
		stamped := now
		referral.Status = to
		referral.LastStatusChangeAt = &stamped
		referral.UpdatedAt = s.now()
		s.referrals[id] = referral
		modified++
	}
	return modified, nil
}

func (r referralStore) BackfillStatusChangeAt(_ context.Context, now time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for id, referral := range s.referrals {
		if referral.LastStatusChangeAt != nil {
			continue
		}
		stamped := now
		referral.LastStatusChangeAt = &stamped
		s.referrals[id] = referral
		modified++
	}
	return modified, nil
}

func cloneReferral(r domain.Referral) domain.Referral {
	if r.Payments != nil {
		r.Payments = append([]time.Time(nil), r.Payments...)
	}
	if r.LastStatusChangeAt != nil {
		ts := *r.LastStatusChangeAt
		r.LastStatusChangeAt = &ts
	}
	return r
}
