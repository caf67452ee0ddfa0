package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// maxWebhookBody bounds the accepted payload size.
const maxWebhookBody = 1 << 20 // 1 MiB

// signatureHeader carries the HMAC-SHA256 payload signature.
const signatureHeader = "X-Hub-Signature-256"

// eventHeader names the event kind in GitHub-style deliveries. When
// absent, the kind is read from the payload body.
const eventHeader = "X-Slipway-Event"

// webhookPayload is the accepted webhook body.
type webhookPayload struct {
	Event     string `json:"event"`
	Branch    string `json:"branch"`
	CommitSHA string `json:"commit_sha"`
	// GitHub push payload compatibility: refs/heads/<branch> and the
	// head commit id are accepted as fallbacks.
	Ref   string `json:"ref,omitempty"`
	After string `json:"after,omitempty"`
}

// handleWebhook verifies, parses, and dispatches an incoming event.
// Dispatch is synchronous: the response carries the finished run's ID
// and status.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if len(s.opts.WebhookSecret) > 0 {
		if !verifySignature(s.opts.WebhookSecret, body, r.Header.Get(signatureHeader)) {
			s.logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	event, err := parseEvent(body, r.Header.Get(eventHeader))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := s.dispatcher.Dispatch(r.Context(), event)
	if err != nil {
		if errors.Is(err, slipwayerrors.ErrNoJobsMatched) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "no jobs matched"})
			return
		}
		s.logger.Error().Err(err).Str("event", event.Kind.String()).Msg("dispatch failed")
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": record.ID,
		"status": record.Status.String(),
	})
}

// handleListRuns returns run records, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	records, err := s.runs.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetRun returns a single run record.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	record, err := s.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, slipwayerrors.ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to get run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// parseEvent builds a trigger event from the payload and optional
// event header.
func parseEvent(body []byte, headerKind string) (domain.TriggerEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.TriggerEvent{}, errors.New("invalid payload")
	}

	kindName := payload.Event
	if kindName == "" {
		kindName = headerKind
	}

	var kind constants.TriggerKind
	switch kindName {
	case "push":
		kind = constants.TriggerPush
	case "pull_request":
		kind = constants.TriggerPullRequest
	case "manual":
		kind = constants.TriggerManual
	default:
		return domain.TriggerEvent{}, errors.New("unknown event kind")
	}

	branch := payload.Branch
	if branch == "" {
		branch = strings.TrimPrefix(payload.Ref, "refs/heads/")
	}
	if branch == "" {
		return domain.TriggerEvent{}, errors.New("missing branch")
	}

	sha := payload.CommitSHA
	if sha == "" {
		sha = payload.After
	}

	return domain.TriggerEvent{
		Kind:       kind,
		Branch:     branch,
		CommitSHA:  sha,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// verifySignature checks a GitHub-style sha256= HMAC signature in
// constant time.
func verifySignature(secret, body []byte, header string) bool {
	expected, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(computed), []byte(expected))
}

// writeJSON serializes a response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
