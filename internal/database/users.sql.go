// internal/database/users.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getUserByID = `-- name: GetUserByID :one
SELECT id, github_id, github_username, email, avatar_url, github_token, created_at, updated_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.GithubID,
		&i.GithubUsername,
		&i.Email,
		&i.AvatarUrl,
		&i.GithubToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listUsersWithTokens = `-- name: ListUsersWithTokens :many
SELECT id, github_id, github_username, email, avatar_url, github_token, created_at, updated_at
FROM users
WHERE github_token IS NOT NULL AND github_token <> ''
ORDER BY id
`

func (q *Queries) ListUsersWithTokens(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersWithTokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(
			&i.ID,
			&i.GithubID,
			&i.GithubUsername,
			&i.Email,
			&i.AvatarUrl,
			&i.GithubToken,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const updateUserToken = `-- name: UpdateUserToken :exec
UPDATE users
SET github_token = $2, updated_at = NOW()
WHERE id = $1
`

type UpdateUserTokenParams struct {
	ID          int64       `json:"id"`
	GithubToken pgtype.Text `json:"github_token"`
}

func (q *Queries) UpdateUserToken(ctx context.Context, arg UpdateUserTokenParams) error {
	_, err := q.db.Exec(ctx, updateUserToken, arg.ID, arg.GithubToken)
	return err
}
