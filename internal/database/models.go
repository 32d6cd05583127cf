// internal/database/models.go
package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Analysis struct {
	ID                   int64              `json:"id"`
	RunID                pgtype.UUID        `json:"run_id"`
	RepositoryID         int64              `json:"repository_id"`
	PrNumber             int32              `json:"pr_number"`
	PrUrl                string             `json:"pr_url"`
	PrTitle              string             `json:"pr_title"`
	Status               string             `json:"status"`
	StartedAt            pgtype.Timestamptz `json:"started_at"`
	CompletedAt          pgtype.Timestamptz `json:"completed_at"`
	FilesAnalyzed        int32              `json:"files_analyzed"`
	TotalVulnerabilities int32              `json:"total_vulnerabilities"`
	CriticalCount        int32              `json:"critical_count"`
	HighCount            int32              `json:"high_count"`
	MediumCount          int32              `json:"medium_count"`
	LowCount             int32              `json:"low_count"`
	TotalStyleIssues     int32              `json:"total_style_issues"`
	StyleCategories      []byte             `json:"style_categories"`
	Error                pgtype.Text        `json:"error"`
}

type AnalysisFileResult struct {
	ID              int64              `json:"id"`
	AnalysisID      int64              `json:"analysis_id"`
	FilePath        string             `json:"file_path"`
	Vulnerabilities []byte             `json:"vulnerabilities"`
	StyleIssues     []byte             `json:"style_issues"`
	Error           pgtype.Text        `json:"error"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
}

type Repository struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	GithubID  int64              `json:"github_id"`
	Owner     string             `json:"owner"`
	Name      string             `json:"name"`
	FullName  string             `json:"full_name"`
	WebhookID pgtype.Int8        `json:"webhook_id"`
	IsActive  bool               `json:"is_active"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type User struct {
	ID             int64              `json:"id"`
	GithubID       int64              `json:"github_id"`
	GithubUsername string             `json:"github_username"`
	Email          pgtype.Text        `json:"email"`
	AvatarUrl      pgtype.Text        `json:"avatar_url"`
	GithubToken    pgtype.Text        `json:"-"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type WebhookEvent struct {
	ID             int64              `json:"id"`
	RepositoryID   int64              `json:"repository_id"`
	DeliveryID     string             `json:"delivery_id"`
	EventType      string             `json:"event_type"`
	Action         string             `json:"action"`
	PrNumber       int32              `json:"pr_number"`
	PrTitle        string             `json:"pr_title"`
	PrUrl          string             `json:"pr_url"`
	SenderUsername string             `json:"sender_username"`
	ReceivedAt     pgtype.Timestamptz `json:"received_at"`
}
