package firestore

import (
	"context"
	"errors"
	"strings"

	pfirestore "github.com/plateroute/api/internal/platform/firestore"

	domain "github.com/plateroute/api/internal/domain"
)

const usersCollection = "users"

type userDocument struct {
	Name     string `firestore:"name"`
	Phone    string `firestore:"phone,omitempty"`
	Role     string `firestore:"role"`
	IsActive bool   `firestore:"isActive"`
}

// UserRepository reads user-directory projections from Firestore. The order
// core only consults the directory, account writes live elsewhere.
type UserRepository struct {
	base *pfirestore.Collection[userDocument]
}

// NewUserRepository constructs a Firestore-backed user directory.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewCollection[userDocument](provider, usersCollection)
	return &UserRepository{base: base}, nil
}

// GetUser resolves a user account by id.
func (r *UserRepository) GetUser(ctx context.Context, userID string) (domain.UserAccount, error) {
	if r == nil || r.base == nil {
		return domain.UserAccount{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.UserAccount{}, errors.New("user repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return domain.UserAccount{
		ID:       doc.ID,
		Name:     doc.Data.Name,
		Phone:    doc.Data.Phone,
		Role:     doc.Data.Role,
		IsActive: doc.Data.IsActive,
	}, nil
}
