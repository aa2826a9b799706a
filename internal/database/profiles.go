package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createProfile = `-- name: CreateProfile :one
INSERT INTO profiles (user_id, username, display_name)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET username = EXCLUDED.username, display_name = EXCLUDED.display_name
RETURNING user_id, username, display_name, profile_picture, created_at
`

type CreateProfileParams struct {
	UserID      pgtype.UUID
	Username    string
	DisplayName string
}

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	row := q.db.QueryRow(ctx, createProfile, arg.UserID, arg.Username, arg.DisplayName)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.Username,
		&i.DisplayName,
		&i.ProfilePicture,
		&i.CreatedAt,
	)
	return i, err
}

const getProfile = `-- name: GetProfile :one
SELECT user_id, username, display_name, profile_picture, created_at
FROM profiles
WHERE user_id = $1
`

func (q *Queries) GetProfile(ctx context.Context, userID pgtype.UUID) (Profile, error) {
	row := q.db.QueryRow(ctx, getProfile, userID)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.Username,
		&i.DisplayName,
		&i.ProfilePicture,
		&i.CreatedAt,
	)
	return i, err
}

const listProfiles = `-- name: ListProfiles :many
SELECT user_id, username, display_name, profile_picture, created_at
FROM profiles
`

func (q *Queries) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := q.db.Query(ctx, listProfiles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Profile
	for rows.Next() {
		var i Profile
		if err := rows.Scan(
			&i.UserID,
			&i.Username,
			&i.DisplayName,
			&i.ProfilePicture,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateProfilePicture = `-- name: UpdateProfilePicture :one
UPDATE profiles
SET profile_picture = $2
WHERE user_id = $1
RETURNING user_id, username, display_name, profile_picture, created_at
`

type UpdateProfilePictureParams struct {
	UserID         pgtype.UUID
	ProfilePicture string
}

func (q *Queries) UpdateProfilePicture(ctx context.Context, arg UpdateProfilePictureParams) (Profile, error) {
	row := q.db.QueryRow(ctx, updateProfilePicture, arg.UserID, arg.ProfilePicture)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.Username,
		&i.DisplayName,
		&i.ProfilePicture,
		&i.CreatedAt,
	)
	return i, err
}
