package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"

	"github.com/johndosdos/cove/internal/broker"
	"github.com/johndosdos/cove/internal/database"
	"github.com/johndosdos/cove/internal/feed"
	"github.com/johndosdos/cove/internal/model"
)

func (b *Backend) SubscribeProfiles(ctx context.Context,
	onSnapshot func([]model.UserProfile), onError func(error)) (feed.Unsubscribe, error) {
	fetch := func(ctx context.Context) ([]model.UserProfile, error) {
		rows, err := b.profiles.ListProfiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("internal/backend: failed to list profiles: %w", err)
		}
		return lo.Map(rows, toProfile), nil
	}
	return watch(ctx, b.notifier, broker.AllProfilesSubject(), fetch, onSnapshot, onError)
}

func (b *Backend) GetProfile(ctx context.Context, userID uuid.UUID) (model.UserProfile, error) {
	row, err := b.profiles.GetProfile(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.UserProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("internal/backend: failed to get profile: %w", err)
	}
	return toProfile(row, 0), nil
}

// UpdateProfilePicture writes the profile_picture field and nothing else.
func (b *Backend) UpdateProfilePicture(ctx context.Context, userID uuid.UUID, url string) error {
	row, err := b.profiles.UpdateProfilePicture(ctx, database.UpdateProfilePictureParams{
		UserID:         pgtype.UUID{Bytes: userID, Valid: true},
		ProfilePicture: url,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("internal/backend: failed to update profile picture: %w", err)
	}

	b.announceProfile(ctx, toProfile(row, 0))
	return nil
}

// CreateProfile inserts or renames a profile. Profiles are normally edited
// outside this service; this exists for seeding.
func (b *Backend) CreateProfile(ctx context.Context, userID uuid.UUID, username, displayName string) (model.UserProfile, error) {
	row, err := b.profiles.CreateProfile(ctx, database.CreateProfileParams{
		UserID:      pgtype.UUID{Bytes: userID, Valid: true},
		Username:    username,
		DisplayName: displayName,
	})
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("internal/backend: failed to create profile: %w", err)
	}

	profile := toProfile(row, 0)
	b.announceProfile(ctx, profile)
	return profile, nil
}

func (b *Backend) announceProfile(ctx context.Context, p model.UserProfile) {
	evt := broker.ChangeEvent{
		Collection: CollectionProfiles,
		RecordID:   p.ID,
		At:         time.Now().UTC(),
	}
	if err := b.notifier.Notify(ctx, broker.ProfileSubject(p.ID), evt); err != nil {
		b.log.WarnContext(ctx, "failed to publish profile change",
			"user_id", p.ID,
			"error", err)
	}
}

func toProfile(row database.Profile, _ int) model.UserProfile {
	return model.UserProfile{
		ID:             row.UserID.Bytes,
		Username:       row.Username,
		DisplayName:    row.DisplayName,
		ProfilePicture: row.ProfilePicture,
		CreatedAt:      row.CreatedAt.Time.UTC(),
	}
}
