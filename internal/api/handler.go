// internal/api/handler.go
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"codesentry/internal/database"
	custom_errors "codesentry/internal/errors"
	"codesentry/internal/model"
	"codesentry/internal/orchestrator"
	"codesentry/internal/webhooks"
)

// JobSubmitter hands a run to the background orchestrator.
type JobSubmitter interface {
	Submit(job orchestrator.Job) error
}

// WebhookAdmin manages repository hooks on behalf of the admin routes.
type WebhookAdmin interface {
	ConnectRepository(ctx context.Context, repositoryID int64) (model.WebhookRegistration, error)
	DisconnectRepository(ctx context.Context, repositoryID int64) error
	RetryRegistrationsForUser(ctx context.Context, userID int64) (webhooks.RetryReport, error)
}

// Options configures request authentication.
type Options struct {
	WebhookSecret    string
	RequireSignature bool
	// AdminToken enables the /v1/admin routes when set.
	AdminToken string
}

// Handler is the container for API dependencies.
type Handler struct {
	store  database.Store
	jobs   JobSubmitter
	hooks  WebhookAdmin
	opts   Options
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(store database.Store, jobs JobSubmitter, hooks WebhookAdmin, opts Options, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:  store,
		jobs:   jobs,
		hooks:  hooks,
		opts:   opts,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Post("/webhooks/github", h.handleGithubWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/repositories/{id}/pulls/{number}/analysis", h.getAnalysis)
		r.Get("/repositories/{id}/events", h.getWebhookEvents)

		if opts.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/repositories/{id}/webhook", h.connectRepository)
				r.Delete("/repositories/{id}/webhook", h.disconnectRepository)
				r.Post("/users/{id}/webhooks/retry", h.retryUserWebhooks)
			})
		}
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fileResultResponse struct {
	FilePath        string          `json:"file_path"`
	Vulnerabilities json.RawMessage `json:"vulnerabilities"`
	StyleIssues     json.RawMessage `json:"style_issues"`
	Error           string          `json:"error,omitempty"`
}

type analysisResponse struct {
	ID                   int64                `json:"id"`
	RunID                string               `json:"run_id"`
	RepositoryID         int64                `json:"repository_id"`
	PRNumber             int32                `json:"pr_number"`
	PRURL                string               `json:"pr_url"`
	PRTitle              string               `json:"pr_title"`
	Status               model.RunStatus      `json:"status"`
	StartedAt            *time.Time           `json:"started_at"`
	CompletedAt          *time.Time           `json:"completed_at"`
	FilesAnalyzed        int32                `json:"files_analyzed"`
	TotalVulnerabilities int32                `json:"total_vulnerabilities"`
	SeverityCounts       model.SeverityCounts `json:"severity_counts"`
	TotalStyleIssues     int32                `json:"total_style_issues"`
	StyleCategories      json.RawMessage      `json:"style_categories"`
	Error                string               `json:"error,omitempty"`
	Files                []fileResultResponse `json:"files"`
}

// getAnalysis returns the current run for a pull request with its per-file results.
// GET /v1/repositories/{id}/pulls/{number}/analysis
func (h *Handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	repoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 32)
	if err != nil || number <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid pull request number")
		return
	}

	analysis, err := h.store.GetAnalysisByRepoAndPR(r.Context(), database.GetAnalysisByRepoAndPRParams{
		RepositoryID: repoID,
		PrNumber:     int32(number),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		h.logger.Error("Failed to get analysis", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	files, err := h.store.ListAnalysisFileResults(r.Context(), analysis.ID)
	if err != nil {
		h.logger.Error("Failed to list file results", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, toAnalysisResponse(analysis, files))
}

// getWebhookEvents returns the most recent deliveries for a repository.
// GET /v1/repositories/{id}/events?limit=N
func (h *Handler) getWebhookEvents(w http.ResponseWriter, r *http.Request) {
	repoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "20" // Default limit
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return
	}

	events, err := h.store.ListWebhookEventsByRepo(r.Context(), database.ListWebhookEventsByRepoParams{
		RepositoryID: repoID,
		Limit:        int32(limit),
	})
	if err != nil {
		h.logger.Error("Failed to list webhook events", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if events == nil {
		events = []database.WebhookEvent{}
	}

	respondWithJSON(w, http.StatusOK, events)
}

// connectRepository registers the webhook for a tracked repository.
// POST /v1/admin/repositories/{id}/webhook
func (h *Handler) connectRepository(w http.ResponseWriter, r *http.Request) {
	repoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	reg, err := h.hooks.ConnectRepository(r.Context(), repoID)
	if err != nil {
		h.respondWithAdminError(w, "connect repository", err)
		return
	}

	code := http.StatusCreated
	if reg.AlreadyExisted {
		code = http.StatusOK
	}
	respondWithJSON(w, code, reg)
}

// disconnectRepository removes the webhook for a tracked repository.
// DELETE /v1/admin/repositories/{id}/webhook
func (h *Handler) disconnectRepository(w http.ResponseWriter, r *http.Request) {
	repoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	if err := h.hooks.DisconnectRepository(r.Context(), repoID); err != nil {
		h.respondWithAdminError(w, "disconnect repository", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// retryUserWebhooks retries registration for every repository of a user without a hook.
// POST /v1/admin/users/{id}/webhooks/retry
func (h *Handler) retryUserWebhooks(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	report, err := h.hooks.RetryRegistrationsForUser(r.Context(), userID)
	if err != nil {
		h.respondWithAdminError(w, "retry webhook registrations", err)
		return
	}
	if report.Successes == nil {
		report.Successes = []model.WebhookRegistration{}
	}
	if report.Failures == nil {
		report.Failures = []webhooks.Failure{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"successes":     report.Successes,
		"failures":      report.Failures,
		"token_invalid": report.TokenInvalid(),
	})
}

func (h *Handler) respondWithAdminError(w http.ResponseWriter, op string, err error) {
	var malformed *custom_errors.MalformedCredentialError
	var remote *custom_errors.RemoteError

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, custom_errors.ErrNoToken),
		errors.Is(err, custom_errors.ErrDecryptionFailed),
		errors.As(err, &malformed):
		h.logger.Warn("Stored credential unusable", "op", op, "error", err)
		respondWithError(w, http.StatusUnprocessableEntity, "Stored GitHub token is missing or unusable")
	case errors.As(err, &remote):
		h.logger.Warn("GitHub request failed", "op", op, "error", err)
		respondWithJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "GitHub request failed",
			"reason": string(custom_errors.Classify(err)),
		})
	default:
		h.logger.Error("Admin operation failed", "op", op, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireAdmin checks the bearer token on admin routes.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AdminToken)) != 1 {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toAnalysisResponse(a database.Analysis, files []database.AnalysisFileResult) analysisResponse {
	resp := analysisResponse{
		ID:                   a.ID,
		RepositoryID:         a.RepositoryID,
		PRNumber:             a.PrNumber,
		PRURL:                a.PrUrl,
		PRTitle:              a.PrTitle,
		Status:               model.RunStatus(a.Status),
		FilesAnalyzed:        a.FilesAnalyzed,
		TotalVulnerabilities: a.TotalVulnerabilities,
		SeverityCounts: model.SeverityCounts{
			Critical: int(a.CriticalCount),
			High:     int(a.HighCount),
			Medium:   int(a.MediumCount),
			Low:      int(a.LowCount),
		},
		TotalStyleIssues: a.TotalStyleIssues,
		StyleCategories:  rawOr(a.StyleCategories, "{}"),
		Files:            make([]fileResultResponse, 0, len(files)),
	}
	if resp.Status == model.StatusFailed {
		resp.Error = a.Error.String
	}
	if a.RunID.Valid {
		resp.RunID = uuid.UUID(a.RunID.Bytes).String()
	}
	if a.StartedAt.Valid {
		resp.StartedAt = &a.StartedAt.Time
	}
	if a.CompletedAt.Valid {
		resp.CompletedAt = &a.CompletedAt.Time
	}
	for _, f := range files {
		resp.Files = append(resp.Files, fileResultResponse{
			FilePath:        f.FilePath,
			Vulnerabilities: rawOr(f.Vulnerabilities, "[]"),
			StyleIssues:     rawOr(f.StyleIssues, "[]"),
			Error:           f.Error.String,
		})
	}
	return resp
}

func rawOr(b []byte, fallback string) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(b)
}
