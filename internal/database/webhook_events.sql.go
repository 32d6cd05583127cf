// internal/database/webhook_events.sql.go
package database

import (
	"context"
)

const createWebhookEvent = `-- name: CreateWebhookEvent :exec
INSERT INTO webhook_events (repository_id, delivery_id, event_type, action, pr_number, pr_title, pr_url, sender_username)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type CreateWebhookEventParams struct {
	RepositoryID   int64  `json:"repository_id"`
	DeliveryID     string `json:"delivery_id"`
	EventType      string `json:"event_type"`
	Action         string `json:"action"`
	PrNumber       int32  `json:"pr_number"`
	PrTitle        string `json:"pr_title"`
	PrUrl          string `json:"pr_url"`
	SenderUsername string `json:"sender_username"`
}

func (q *Queries) CreateWebhookEvent(ctx context.Context, arg CreateWebhookEventParams) error {
	_, err := q.db.Exec(ctx, createWebhookEvent,
		arg.RepositoryID,
		arg.DeliveryID,
		arg.EventType,
		arg.Action,
		arg.PrNumber,
		arg.PrTitle,
		arg.PrUrl,
		arg.SenderUsername,
	)
	return err
}

const listWebhookEventsByRepo = `-- name: ListWebhookEventsByRepo :many
SELECT id, repository_id, delivery_id, event_type, action, pr_number, pr_title, pr_url, sender_username, received_at
FROM webhook_events
WHERE repository_id = $1
ORDER BY received_at DESC
LIMIT $2
`

type ListWebhookEventsByRepoParams struct {
	RepositoryID int64 `json:"repository_id"`
	Limit        int32 `json:"limit"`
}

func (q *Queries) ListWebhookEventsByRepo(ctx context.Context, arg ListWebhookEventsByRepoParams) ([]WebhookEvent, error) {
	rows, err := q.db.Query(ctx, listWebhookEventsByRepo, arg.RepositoryID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WebhookEvent
	for rows.Next() {
		var i WebhookEvent
		if err := rows.Scan(
			&i.ID,
			&i.RepositoryID,
			&i.DeliveryID,
			&i.EventType,
			&i.Action,
			&i.PrNumber,
			&i.PrTitle,
			&i.PrUrl,
			&i.SenderUsername,
			&i.ReceivedAt,
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
