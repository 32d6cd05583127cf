// internal/api/webhook.go
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/go-github/v62/github"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"codesentry/internal/database"
	custom_errors "codesentry/internal/errors"
	"codesentry/internal/model"
	"codesentry/internal/orchestrator"
)

const (
	maxPayloadBytes = 25 << 20 // GitHub caps payloads at 25MB

	eventPullRequest = "pull_request"
)

var analyzedActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
}

type webhookResponse struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	AnalysisID int64  `json:"analysis_id,omitempty"`
}

// handleGithubWebhook receives pull request events and queues an analysis run.
// Ignored deliveries are still acknowledged with 200 so GitHub does not retry them.
// POST /webhooks/github
func (h *Handler) handleGithubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	if err := h.verifySignature(r, body); err != nil {
		h.logger.Warn("Rejected webhook delivery", "delivery_id", github.DeliveryID(r), "error", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	eventType := github.WebHookType(r)
	deliveryID := github.DeliveryID(r)
	logger := h.logger.With("delivery_id", deliveryID, "event", eventType)

	if eventType != eventPullRequest {
		respondWithJSON(w, http.StatusOK, webhookResponse{Status: "ignored", Reason: "unsupported event"})
		return
	}

	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		logger.Warn("Malformed webhook payload", "error", err)
		respondWithError(w, http.StatusBadRequest, "Malformed payload")
		return
	}
	event, ok := payload.(*github.PullRequestEvent)
	if !ok || event.GetPullRequest() == nil || event.GetRepo() == nil {
		respondWithError(w, http.StatusBadRequest, "Malformed payload")
		return
	}

	action := event.GetAction()
	if !analyzedActions[action] {
		respondWithJSON(w, http.StatusOK, webhookResponse{Status: "ignored", Reason: "action " + action + " is not analyzed"})
		return
	}

	ctx := r.Context()
	repo, err := h.store.GetRepositoryByGithubID(ctx, event.GetRepo().GetID())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Info("Webhook for untracked repository", "github_id", event.GetRepo().GetID(), "repository", event.GetRepo().GetFullName())
			respondWithJSON(w, http.StatusOK, webhookResponse{Status: "ignored", Reason: "repository not tracked"})
			return
		}
		logger.Error("Failed to look up repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	pr := toPullRequest(event, repo)
	logger = logger.With("repository", pr.FullName(), "pr", pr.Number, "action", action)

	runID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	analysis, err := database.ResetAnalysisRun(ctx, h.store, database.UpsertAnalysisParams{
		RunID:        runID,
		RepositoryID: repo.ID,
		PrNumber:     int32(pr.Number),
		PrUrl:        pr.HTMLURL,
		PrTitle:      pr.Title,
	})
	if err != nil {
		logger.Error("Failed to reset analysis run", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.store.CreateWebhookEvent(ctx, database.CreateWebhookEventParams{
		RepositoryID:   repo.ID,
		DeliveryID:     deliveryID,
		EventType:      eventType,
		Action:         action,
		PrNumber:       int32(pr.Number),
		PrTitle:        pr.Title,
		PrUrl:          pr.HTMLURL,
		SenderUsername: event.GetSender().GetLogin(),
	}); err != nil {
		logger.Warn("Failed to record webhook event", "error", err)
	}

	err = h.jobs.Submit(orchestrator.Job{
		AnalysisID:   analysis.ID,
		RunID:        analysis.RunID,
		RepositoryID: repo.ID,
		UserID:       repo.UserID,
		PR:           pr,
	})
	if err != nil {
		logger.Error("Failed to queue analysis", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Analysis could not be queued")
		return
	}

	logger.Info("Analysis queued", "analysis_id", analysis.ID)
	respondWithJSON(w, http.StatusOK, webhookResponse{Status: "queued", AnalysisID: analysis.ID})
}

// verifySignature checks X-Hub-Signature-256. Without a secret, unsigned
// deliveries pass unless RequireSignature is set.
func (h *Handler) verifySignature(r *http.Request, body []byte) error {
	if h.opts.WebhookSecret == "" {
		if h.opts.RequireSignature {
			return custom_errors.ErrInvalidSignature
		}
		return nil
	}

	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		return custom_errors.ErrInvalidSignature
	}
	if err := github.ValidateSignature(signature, body, []byte(h.opts.WebhookSecret)); err != nil {
		return errors.Join(custom_errors.ErrInvalidSignature, err)
	}
	return nil
}

func toPullRequest(event *github.PullRequestEvent, repo database.Repository) model.PullRequest {
	ghPR := event.GetPullRequest()
	ghRepo := event.GetRepo()

	pr := model.PullRequest{
		Owner:   ghRepo.GetOwner().GetLogin(),
		Repo:    ghRepo.GetName(),
		Number:  ghPR.GetNumber(),
		HTMLURL: ghPR.GetHTMLURL(),
		Title:   ghPR.GetTitle(),
		Author:  ghPR.GetUser().GetLogin(),
		HeadSHA: ghPR.GetHead().GetSHA(),
	}
	if pr.Number == 0 {
		pr.Number = event.GetNumber()
	}
	if pr.Owner == "" || pr.Repo == "" {
		pr.Owner, pr.Repo = repo.Owner, repo.Name
	}
	for _, u := range ghPR.RequestedReviewers {
		if login := u.GetLogin(); login != "" {
			pr.RequestedReviewers = append(pr.RequestedReviewers, login)
		}
	}
	return pr
}
