package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"gitfeed/internal"
	"gitfeed/pkg/feed"

	"github.com/go-playground/webhooks/v6/github"
)

// GitHubHandler handles incoming webhooks from GitHub.
type GitHubHandler struct {
	hook         *github.Webhook
	fallbackHook *github.Webhook
	secret       string
	opts         Options
}

var githubEvents = []github.Event{
	github.CheckRunEvent,
	github.CheckSuiteEvent,
	github.CommitCommentEvent,
	github.CreateEvent,
	github.DeleteEvent,
	github.DependabotAlertEvent,
	github.DeployKeyEvent,
	github.DeploymentEvent,
	github.DeploymentStatusEvent,
	github.ForkEvent,
	github.GollumEvent,
	github.InstallationEvent,
	github.InstallationRepositoriesEvent,
	github.IntegrationInstallationEvent,
	github.IntegrationInstallationRepositoriesEvent,
	github.IssueCommentEvent,
	github.IssuesEvent,
	github.LabelEvent,
	github.MemberEvent,
	github.MembershipEvent,
	github.MilestoneEvent,
	github.MetaEvent,
	github.OrganizationEvent,
	github.OrgBlockEvent,
	github.PageBuildEvent,
	github.PingEvent,
	github.ProjectCardEvent,
	github.ProjectColumnEvent,
	github.ProjectEvent,
	github.PublicEvent,
	github.PullRequestEvent,
	github.PullRequestReviewEvent,
	github.PullRequestReviewCommentEvent,
	github.PushEvent,
	github.ReleaseEvent,
	github.RepositoryEvent,
	github.RepositoryVulnerabilityAlertEvent,
	github.SecurityAdvisoryEvent,
	github.StatusEvent,
	github.TeamEvent,
	github.TeamAddEvent,
	github.WatchEvent,
	github.WorkflowDispatchEvent,
	github.WorkflowJobEvent,
	github.WorkflowRunEvent,
	github.GitHubAppAuthorizationEvent,
}

// NewGitHubHandler creates a new GitHubHandler.
func NewGitHubHandler(secret string, opts Options) (*GitHubHandler, error) {
	hook, err := github.New(github.Options.Secret(secret))
	if err != nil {
		return nil, err
	}
	fallbackHook, err := github.New()
	if err != nil {
		return nil, err
	}
	return &GitHubHandler{
		hook:         hook,
		fallbackHook: fallbackHook,
		secret:       secret,
		opts:         opts.withDefaults(),
	}, nil
}

// ServeHTTP handles an incoming HTTP request.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	internal.IncRequest("github")
	if h.opts.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBody)
	}
	reqID := internal.RequestID(r)
	w.Header().Set("X-Request-Id", reqID)
	logger := internal.WithRequestID(h.opts.Logger, reqID)
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))

	if h.opts.DebugEvents {
		logDebugEvent(logger, "github", r.Header.Get("X-GitHub-Event"), rawBody)
	}

	payload, err := h.hook.Parse(r, githubEvents...)
	if err != nil {
		// Older hook configurations only send the SHA1 signature header.
		if errors.Is(err, github.ErrMissingHubSignatureHeader) && h.secret != "" {
			sha1Header := r.Header.Get("X-Hub-Signature")
			if sha1Header != "" && verifyGitHubSHA1(h.secret, rawBody, sha1Header) {
				logger.Printf("github parse warning: %v; accepted sha1 signature", err)
				r.Body = io.NopCloser(bytes.NewReader(rawBody))
				payload, err = h.fallbackHook.Parse(r, githubEvents...)
			}
		}
		if err != nil {
			internal.IncParseError("github")
			logger.Printf("github parse failed: %v", err)
			statusJSON(w, http.StatusBadRequest, map[string]string{"error": "could not parse webhook"})
			return
		}
	}

	if _, ok := payload.(github.PingPayload); ok {
		statusJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	eventName := r.Header.Get("X-GitHub-Event")
	event := &internal.Event{
		Provider:   "github",
		Name:       eventName,
		RequestID:  reqID,
		RawPayload: rawBody,
	}

	status := "accepted"
	switch eventName {
	case feed.EventPush, feed.EventPullRequest:
		rec, err := feed.Normalize(eventName, rawBody)
		if err != nil {
			internal.IncParseError("github")
			logger.Printf("github %s rejected: %v", eventName, err)
			statusJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if rec == nil {
			internal.IncIgnored("github")
			status = "ignored"
			if eventName == feed.EventPush {
				status = "ignored, no head_commit"
			}
			break
		}
		event.Record = rec
		outcome, err := h.opts.record(r.Context(), rec)
		if err != nil {
			logger.Printf("github store failed: %v", err)
			statusJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
			return
		}
		if outcome == statusDuplicate {
			logger.Printf("github duplicate event %s/%s", rec.RequestID, rec.Action)
			statusJSON(w, http.StatusOK, map[string]string{"status": statusDuplicate})
			return
		}
		if outcome != "" {
			status = outcome
		}
	}

	h.opts.emit(r.Context(), logger, event)
	statusJSON(w, http.StatusOK, map[string]string{"status": status})
}

func verifyGitHubSHA1(secret string, body []byte, signature string) bool {
	if secret == "" || len(body) == 0 || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha1=")
	mac := hmac.New(sha1.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
