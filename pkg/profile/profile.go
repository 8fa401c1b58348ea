// Package profile stores the visitor's identity record. The record gates
// access to the catalog: nothing is shown until a valid profile exists.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/anilist-browser/pkg/validation"
)

// Key is the storage key of the profile record.
const Key = "user-profile"

// probeKey is written and removed to check that storage works.
const probeKey = "__storage_test__"

var (
	// ErrNoProfile is returned by Update when no valid profile is stored.
	ErrNoProfile = errors.New("no profile stored")

	// ErrInvalidProfile wraps the field errors of a rejected profile.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile is the visitor's identity.
type Profile struct {
	Username string `json:"username" validate:"required,max=50"`
	JobTitle string `json:"jobTitle" validate:"required,max=100"`
}

// Patch is a partial profile; nil fields are left unchanged.
type Patch struct {
	Username *string `json:"username,omitempty"`
	JobTitle *string `json:"jobTitle,omitempty"`
}

// trimmed returns p with surrounding whitespace removed from every field.
func (p Profile) trimmed() Profile {
	return Profile{
		Username: strings.TrimSpace(p.Username),
		JobTitle: strings.TrimSpace(p.JobTitle),
	}
}

// apply merges patch onto p.
func (p Profile) apply(patch Patch) Profile {
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.JobTitle != nil {
		p.JobTitle = *patch.JobTitle
	}
	return p
}

// Storage is a string key/value store shaped like browser localStorage.
type Storage interface {
	// GetItem returns the value for key; ok is false when it is absent.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Store reads and writes the profile record through a Storage.
type Store struct {
	storage  Storage
	validate *validation.Validator
	logger   zerolog.Logger
}

// NewStore creates a store over storage.
func NewStore(storage Storage) *Store {
	return &Store{
		storage:  storage,
		validate: validation.New(),
		logger:   log.With().Str("component", "profile").Logger(),
	}
}

// Load returns the stored profile. Missing, unreadable and invalid records
// all yield (nil, false).
func (s *Store) Load(ctx context.Context) (*Profile, bool) {
	raw, ok, err := s.storage.GetItem(ctx, Key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Profile storage read failed")
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Debug().Err(err).Msg("Ignoring corrupted profile record")
		return nil, false
	}
	p = p.trimmed()
	if err := s.validate.Validate(p); err != nil {
		s.logger.Debug().Err(err).Msg("Ignoring invalid profile record")
		return nil, false
	}
	return &p, true
}

// Save validates the trimmed profile and stores it. Validation failures
// wrap ErrInvalidProfile and a *validation.Error with per-field messages.
func (s *Store) Save(ctx context.Context, p Profile) (*Profile, error) {
	p = p.trimmed()
	if err := s.validate.Validate(p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.storage.SetItem(ctx, Key, string(data)); err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}

	s.logger.Debug().Str("username", p.Username).Msg("Profile saved")
	return &p, nil
}

// Update merges patch onto the stored profile and saves the result.
func (s *Store) Update(ctx context.Context, patch Patch) (*Profile, error) {
	current, ok := s.Load(ctx)
	if !ok {
		return nil, ErrNoProfile
	}
	return s.Save(ctx, current.apply(patch))
}

// Delete removes the profile record.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.storage.RemoveItem(ctx, Key); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// Available reports whether the storage accepts writes.
func (s *Store) Available(ctx context.Context) bool {
	if err := s.storage.SetItem(ctx, probeKey, probeKey); err != nil {
		s.logger.Debug().Err(err).Msg("Profile storage unavailable")
		return false
	}
	if err := s.storage.RemoveItem(ctx, probeKey); err != nil {
		s.logger.Debug().Err(err).Msg("Profile storage unavailable")
		return false
	}
	return true
}
