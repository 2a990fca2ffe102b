package service

import (
	"context"
	"fmt"

	"github.com/hatchling/journal/internal/models"
)

// UserRepository defines the profile operations required by the user service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, p models.UserPatch) error
}

// UserService reads and edits the caller's own profile.
type UserService struct {
	repo UserRepository
}

// NewUserService constructs a UserService.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Get returns the profile id. Callers may only read their own.
func (s *UserService) Get(ctx context.Context, callerID, id string) (*models.User, error) {
	if callerID != id {
		return nil, models.ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateUserInput holds the allow-listed profile fields. Nil fields are
// not changed.
type UpdateUserInput struct {
	Name           *string
	Email          *string
	Avatar         *string
	DefaultPrivacy *string
	NudgeOptIn     *bool
	NudgeFrequency *string
}

// Update edits the caller's profile and returns the stored result.
func (s *UserService) Update(ctx context.Context, callerID, id string, in UpdateUserInput) (*models.User, error) {
	if callerID != id {
		return nil, models.ErrForbidden
	}

	p := models.UserPatch{
		Name:       in.Name,
		Email:      in.Email,
		Avatar:     in.Avatar,
		NudgeOptIn: in.NudgeOptIn,
	}
	if in.DefaultPrivacy != nil {
		privacy := models.Privacy(*in.DefaultPrivacy)
		if !privacy.Valid() {
			return nil, models.Invalid("default_privacy", "must be one of private, shared, public")
		}
		p.DefaultPrivacy = &privacy
	}
	if in.NudgeFrequency != nil {
		freq := models.NudgeFrequency(*in.NudgeFrequency)
		if !freq.Valid() {
			return nil, models.Invalid("nudge_frequency", "must be one of daily, weekly, occasionally")
		}
		p.NudgeFrequency = &freq
	}
	if p.Empty() {
		return nil, models.Invalid("", "no valid fields to update")
	}

	if err := s.repo.Update(ctx, id, p); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}
