package profile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/anilist-browser/pkg/validation"
)

func strPtr(s string) *string { return &s }

func TestStore_SaveAndLoadTrims(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStorage())

	saved, err := store.Save(ctx, Profile{Username: "  alice ", JobTitle: "\tEngineer\n"})
	require.NoError(t, err)
	assert.Equal(t, &Profile{Username: "alice", JobTitle: "Engineer"}, saved)

	loaded, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, saved, loaded)
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		in     Profile
		fields []string
	}{
		{"empty username", Profile{Username: "", JobTitle: "Dev"}, []string{"username"}},
		{"whitespace username", Profile{Username: "   ", JobTitle: "Dev"}, []string{"username"}},
		{"long username", Profile{Username: strings.Repeat("a", 51), JobTitle: "Dev"}, []string{"username"}},
		{"long job title", Profile{Username: "bob", JobTitle: strings.Repeat("j", 101)}, []string{"jobTitle"}},
		{"both missing", Profile{}, []string{"jobTitle", "username"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			store := NewStore(storage)

			_, err := store.Save(context.Background(), tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidProfile)

			var verr *validation.Error
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.fields))

			_, stored, _ := storage.GetItem(context.Background(), Key)
			assert.False(t, stored, "invalid profile must not be stored")
		})
	}
}

func TestStore_SaveAcceptsBoundaryLengths(t *testing.T) {
	store := NewStore(NewMemoryStorage())

	// Limits count characters, not bytes.
	p, err := store.Save(context.Background(), Profile{
		Username: strings.Repeat("名", 50),
		JobTitle: strings.Repeat("x", 100),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, len([]rune(p.Username)))
}

func TestStore_LoadIgnoresBadRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "{username"},
		{"wrong shape", `["alice"]`},
		{"missing field", `{"username":"alice"}`},
		{"too long", `{"username":"` + strings.Repeat("a", 60) + `","jobTitle":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			require.NoError(t, storage.SetItem(context.Background(), Key, tt.raw))

			p, ok := NewStore(storage).Load(context.Background())
			assert.False(t, ok)
			assert.Nil(t, p)
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	p, ok := NewStore(NewMemoryStorage()).Load(context.Background())
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestStore_LoadStorageError(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Err = errors.New("disabled")

	p, ok := NewStore(storage).Load(context.Background())
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStorage())

	_, err := store.Update(ctx, Patch{JobTitle: strPtr("Lead")})
	assert.ErrorIs(t, err, ErrNoProfile)

	_, err = store.Save(ctx, Profile{Username: "carol", JobTitle: "Dev"})
	require.NoError(t, err)

	updated, err := store.Update(ctx, Patch{JobTitle: strPtr(" Lead ")})
	require.NoError(t, err)
	assert.Equal(t, &Profile{Username: "carol", JobTitle: "Lead"}, updated)

	_, err = store.Update(ctx, Patch{Username: strPtr("")})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	loaded, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "carol", loaded.Username, "failed update must keep the stored record")
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStorage())

	_, err := store.Save(ctx, Profile{Username: "dave", JobTitle: "QA"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx))

	_, ok := store.Load(ctx)
	assert.False(t, ok)
}

func TestStore_Available(t *testing.T) {
	ctx := context.Background()

	storage := NewMemoryStorage()
	assert.True(t, NewStore(storage).Available(ctx))
	_, leftover, _ := storage.GetItem(ctx, probeKey)
	assert.False(t, leftover, "probe key must be removed")

	storage.Err = errors.New("quota exceeded")
	assert.False(t, NewStore(storage).Available(ctx))
}

func TestStore_SaveStorageError(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Err = errors.New("quota exceeded")

	_, err := NewStore(storage).Save(context.Background(), Profile{Username: "erin", JobTitle: "PM"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidProfile)
}
