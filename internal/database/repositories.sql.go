// internal/database/repositories.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getRepositoryByGithubID = `-- name: GetRepositoryByGithubID :one
SELECT id, user_id, github_id, owner, name, full_name, webhook_id, is_active, created_at, updated_at
FROM repositories
WHERE github_id = $1 AND is_active
`

func (q *Queries) GetRepositoryByGithubID(ctx context.Context, githubID int64) (Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByGithubID, githubID)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.GithubID,
		&i.Owner,
		&i.Name,
		&i.FullName,
		&i.WebhookID,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getRepositoryByID = `-- name: GetRepositoryByID :one
SELECT id, user_id, github_id, owner, name, full_name, webhook_id, is_active, created_at, updated_at
FROM repositories
WHERE id = $1
`

func (q *Queries) GetRepositoryByID(ctx context.Context, id int64) (Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByID, id)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.GithubID,
		&i.Owner,
		&i.Name,
		&i.FullName,
		&i.WebhookID,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listRepositoriesWithoutWebhook = `-- name: ListRepositoriesWithoutWebhook :many
SELECT id, user_id, github_id, owner, name, full_name, webhook_id, is_active, created_at, updated_at
FROM repositories
WHERE user_id = $1 AND webhook_id IS NULL AND is_active
ORDER BY id
`

func (q *Queries) ListRepositoriesWithoutWebhook(ctx context.Context, userID int64) ([]Repository, error) {
	rows, err := q.db.Query(ctx, listRepositoriesWithoutWebhook, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Repository
	for rows.Next() {
		var i Repository
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.GithubID,
			&i.Owner,
			&i.Name,
			&i.FullName,
			&i.WebhookID,
			&i.IsActive,
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

const updateRepositoryWebhook = `-- name: UpdateRepositoryWebhook :exec
UPDATE repositories
SET webhook_id = $2, updated_at = NOW()
WHERE id = $1
`

type UpdateRepositoryWebhookParams struct {
	ID        int64       `json:"id"`
	WebhookID pgtype.Int8 `json:"webhook_id"`
}

func (q *Queries) UpdateRepositoryWebhook(ctx context.Context, arg UpdateRepositoryWebhookParams) error {
	_, err := q.db.Exec(ctx, updateRepositoryWebhook, arg.ID, arg.WebhookID)
	return err
}
