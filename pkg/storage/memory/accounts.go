// Package memory provides in-process stores for tests and throwaway
// environments. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
)

// AccountStore is a mutex-guarded auth.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[int64]*auth.Account
	nextID   int64
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[int64]*auth.Account),
		nextID:   1,
	}
}

func clone(a *auth.Account) *auth.Account {
	c := *a
	if a.VerificationCodeExpiresAt != nil {
		t := *a.VerificationCodeExpiresAt
		c.VerificationCodeExpiresAt = &t
	}
	if a.PasswordResetExpiresAt != nil {
		t := *a.PasswordResetExpiresAt
		c.PasswordResetExpiresAt = &t
	}
	return &c
}

func (s *AccountStore) find(match func(*auth.Account) bool) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if match(a) {
			return clone(a), nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (s *AccountStore) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	return clone(a), nil
}

func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return s.find(func(a *auth.Account) bool { return strings.EqualFold(a.Username, username) })
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.find(func(a *auth.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (s *AccountStore) FindByResetToken(ctx context.Context, token string) (*auth.Account, error) {
	if token == "" {
		return nil, auth.ErrAccountNotFound
	}
	return s.find(func(a *auth.Account) bool { return a.PasswordResetToken == token })
}

func (s *AccountStore) List(ctx context.Context) ([]*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*auth.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *AccountStore) Create(ctx context.Context, in auth.NewAccount) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.Username, in.Username) {
			return nil, auth.ErrDuplicateUsername
		}
		if strings.EqualFold(a.Email, in.Email) {
			return nil, auth.ErrDuplicateEmail
		}
	}

	now := time.Now().UTC()
	expires := in.VerificationCodeExpiresAt
	a := &auth.Account{
		ID:                        s.nextID,
		Username:                  in.Username,
		Email:                     in.Email,
		PasswordHash:              in.PasswordHash,
		Role:                      in.Role,
		FirstName:                 in.FirstName,
		LastName:                  in.LastName,
		VerificationCode:          in.VerificationCode,
		VerificationCodeExpiresAt: &expires,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if !a.Role.Valid() {
		a.Role = auth.DefaultRole
	}
	s.accounts[a.ID] = a
	s.nextID++
	return clone(a), nil
}

// update applies fn to the account under the write lock.
func (s *AccountStore) update(id int64, fn func(a *auth.Account) error) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now().UTC()
	return clone(a), nil
}

func (s *AccountStore) SetVerificationCode(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	_, err := s.update(id, func(a *auth.Account) error {
		a.VerificationCode = code
		a.VerificationCodeExpiresAt = &expiresAt
		a.VerificationCodeAttempts = 0
		return nil
	})
	return err
}

func (s *AccountStore) IncrementVerificationAttempts(ctx context.Context, id int64) (int, error) {
	a, err := s.update(id, func(a *auth.Account) error {
		a.VerificationCodeAttempts++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return a.VerificationCodeAttempts, nil
}

func (s *AccountStore) MarkEmailVerified(ctx context.Context, id int64) error {
	_, err := s.update(id, func(a *auth.Account) error {
		a.EmailVerified = true
		a.VerificationCode = ""
		a.VerificationCodeExpiresAt = nil
		a.VerificationCodeAttempts = 0
		return nil
	})
	return err
}

func (s *AccountStore) SetPasswordResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	_, err := s.update(id, func(a *auth.Account) error {
		a.PasswordResetToken = token
		a.PasswordResetExpiresAt = &expiresAt
		return nil
	})
	return err
}

func (s *AccountStore) ClearPasswordResetToken(ctx context.Context, id int64, token string) error {
	_, err := s.update(id, func(a *auth.Account) error {
		if a.PasswordResetToken == token {
			a.PasswordResetToken = ""
			a.PasswordResetExpiresAt = nil
		}
		return nil
	})
	return err
}

func (s *AccountStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.update(id, func(a *auth.Account) error {
		a.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (s *AccountStore) UpdateProfile(ctx context.Context, id int64, fields auth.ProfileFields) (*auth.Account, error) {
	return s.update(id, func(a *auth.Account) error {
		if fields.Email != nil {
			for _, other := range s.accounts {
				if other.ID != id && strings.EqualFold(other.Email, *fields.Email) {
					return auth.ErrDuplicateEmail
				}
			}
			a.Email = *fields.Email
		}
		if fields.FirstName != nil {
			a.FirstName = *fields.FirstName
		}
		if fields.LastName != nil {
			a.LastName = *fields.LastName
		}
		return nil
	})
}

func (s *AccountStore) UpdateRole(ctx context.Context, id int64, role auth.Role) (*auth.Account, error) {
	return s.update(id, func(a *auth.Account) error {
		a.Role = role
		return nil
	})
}

func (s *AccountStore) UpdateVisibility(ctx context.Context, id int64, public bool) error {
	_, err := s.update(id, func(a *auth.Account) error {
		a.IsProfilePublic = public
		return nil
	})
	return err
}

// Delete removes an account. The auth core never deletes accounts; this
// exists so callers can model an account vanishing under a live session.
func (s *AccountStore) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}
