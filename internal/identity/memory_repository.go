package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User // keyed by ID
	now   func() time.Time
}

// NewMemoryRepository builds an in-memory user store for tests and local
// development.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User), now: time.Now}
}

func (r *memoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.WalletAddress = NormalizeWallet(user.WalletAddress)
	user.Email = NormalizeEmail(user.Email)
	if r.conflicts("", user.WalletAddress, user.Email) {
		return User{}, ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.CredentialsOwned == nil {
		user.CredentialsOwned = []CredentialOwnership{}
	}
	r.users[user.ID] = clone(user)
	return clone(user), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByWalletAddress(_ context.Context, wallet string) (User, error) {
	wallet = NormalizeWallet(wallet)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.WalletAddress == wallet {
			return clone(user), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return clone(user), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) Update(_ context.Context, id string, patch Patch) (User, error) {
	return r.mutate(id, func(u *User) error {
		next := *u
		patch.Apply(&next)
		if next.Email != u.Email && r.conflicts(id, "", next.Email) {
			return ErrDuplicate
		}
		*u = next
		return nil
	})
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryRepository) AddCredential(_ context.Context, id string, cred CredentialOwnership) (User, error) {
	return r.mutate(id, func(u *User) error {
		u.CredentialsOwned = append(u.CredentialsOwned, cred)
		return nil
	})
}

func (r *memoryRepository) RemoveCredential(_ context.Context, id, tokenID string) (User, error) {
	return r.mutate(id, func(u *User) error {
		u.CredentialsOwned = withoutToken(u.CredentialsOwned, tokenID)
		return nil
	})
}

func (r *memoryRepository) FindVerifiedInstitutions(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []User
	for _, user := range r.users {
		if user.UserType == UserTypeInstitution && user.IsVerified {
			out = append(out, clone(user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) mutate(id string, fn func(*User) error) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if err := fn(&user); err != nil {
		return User{}, err
	}
	user.UpdatedAt = r.now().UTC()
	r.users[id] = clone(user)
	return clone(user), nil
}

// conflicts reports whether another user (not exceptID) already holds the
// wallet or email. Callers hold the lock.
func (r *memoryRepository) conflicts(exceptID, wallet, email string) bool {
	for id, user := range r.users {
		if id == exceptID {
			continue
		}
		if wallet != "" && user.WalletAddress == wallet {
			return true
		}
		if email != "" && user.Email == email {
			return true
		}
	}
	return false
}

func clone(u User) User {
	u.CredentialsOwned = append([]CredentialOwnership{}, u.CredentialsOwned...)
	u.Profile.Documents = append([]string(nil), u.Profile.Documents...)
	return u
}

func withoutToken(creds []CredentialOwnership, tokenID string) []CredentialOwnership {
	out := creds[:0:0]
	for _, c := range creds {
		if c.TokenID != tokenID {
			out = append(out, c)
		}
	}
	return out
}
