package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"gitfeed/internal"
	"gitfeed/pkg/feed"

	"github.com/go-playground/webhooks/v6/gitlab"
)

// GitLabHandler handles incoming webhooks from GitLab.
type GitLabHandler struct {
	hook *gitlab.Webhook
	opts Options
}

var gitlabEvents = []gitlab.Event{
	gitlab.PushEvents,
	gitlab.TagEvents,
	gitlab.IssuesEvents,
	gitlab.ConfidentialIssuesEvents,
	gitlab.CommentEvents,
	gitlab.ConfidentialCommentEvents,
	gitlab.MergeRequestEvents,
	gitlab.WikiPageEvents,
	gitlab.PipelineEvents,
	gitlab.BuildEvents,
	gitlab.JobEvents,
	gitlab.DeploymentEvents,
	gitlab.SystemHookEvents,
}

// NewGitLabHandler creates a new GitLabHandler.
func NewGitLabHandler(secret string, opts Options) (*GitLabHandler, error) {
	options := make([]gitlab.Option, 0, 1)
	if secret != "" {
		options = append(options, gitlab.Options.Secret(secret))
	}
	hook, err := gitlab.New(options...)
	if err != nil {
		return nil, err
	}
	return &GitLabHandler{hook: hook, opts: opts.withDefaults()}, nil
}

// ServeHTTP handles an incoming HTTP request.
func (h *GitLabHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	internal.IncRequest("gitlab")
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
		logDebugEvent(logger, "gitlab", r.Header.Get("X-Gitlab-Event"), rawBody)
	}

	if _, err := h.hook.Parse(r, gitlabEvents...); err != nil {
		internal.IncParseError("gitlab")
		logger.Printf("gitlab parse failed: %v", err)
		statusJSON(w, http.StatusBadRequest, map[string]string{"error": "could not parse webhook"})
		return
	}

	eventName := r.Header.Get("X-Gitlab-Event")
	event := &internal.Event{
		Provider:   "gitlab",
		Name:       eventName,
		RequestID:  reqID,
		RawPayload: rawBody,
	}

	status := "accepted"
	switch kind := gitlabObjectKind(rawBody); kind {
	case "push", "merge_request":
		rec, err := normalizeGitLab(kind, rawBody)
		if err != nil {
			internal.IncParseError("gitlab")
			logger.Printf("gitlab %s rejected: %v", kind, err)
			statusJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if rec == nil {
			internal.IncIgnored("gitlab")
			status = "ignored"
			break
		}
		event.Record = rec
		outcome, err := h.opts.record(r.Context(), rec)
		if err != nil {
			logger.Printf("gitlab store failed: %v", err)
			statusJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
			return
		}
		if outcome == statusDuplicate {
			logger.Printf("gitlab duplicate event %s/%s", rec.RequestID, rec.Action)
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

func gitlabObjectKind(raw []byte) string {
	var probe struct {
		ObjectKind string `json:"object_kind"`
	}
	_ = json.Unmarshal(raw, &probe)
	return probe.ObjectKind
}

type gitlabPushPayload struct {
	After        string         `json:"after"`
	Ref          string         `json:"ref"`
	UserUsername string         `json:"user_username"`
	UserName     string         `json:"user_name"`
	Commits      []gitlabCommit `json:"commits"`
}

type gitlabCommit struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

type gitlabMergePayload struct {
	User             gitlabUser       `json:"user"`
	ObjectAttributes gitlabMergeAttrs `json:"object_attributes"`
}

type gitlabUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type gitlabMergeAttrs struct {
	ID           int64  `json:"id"`
	Action       string `json:"action"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// normalizeGitLab maps GitLab push and merge request hooks onto the same
// canonical records the GitHub normalizer produces. GitLab timestamps use
// their own formats, so they are canonicalized before storage.
func normalizeGitLab(kind string, raw []byte) (*feed.Record, error) {
	switch kind {
	case "push":
		var payload gitlabPushPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return normalizeGitLabPush(payload)
	case "merge_request":
		var payload gitlabMergePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return normalizeGitLabMerge(payload)
	default:
		return nil, nil
	}
}

func normalizeGitLabPush(payload gitlabPushPayload) (*feed.Record, error) {
	// Branch creations and deletions deliver an empty commit list.
	if len(payload.Commits) == 0 {
		return nil, nil
	}
	if payload.After == "" {
		return nil, errors.New("push payload missing after hash")
	}
	if payload.Ref == "" {
		return nil, errors.New("push payload missing ref")
	}
	author := payload.UserUsername
	if author == "" {
		author = payload.UserName
	}
	if author == "" {
		return nil, errors.New("push payload missing user")
	}
	tip := payload.Commits[len(payload.Commits)-1]
	for _, commit := range payload.Commits {
		if commit.ID == payload.After {
			tip = commit
			break
		}
	}
	if tip.Timestamp == "" {
		return nil, errors.New("push payload missing commit timestamp")
	}
	return &feed.Record{
		RequestID: payload.After,
		Author:    author,
		Action:    feed.ActionPush,
		ToBranch:  feed.BranchFromRef(payload.Ref),
		Timestamp: canonicalTimestamp(tip.Timestamp),
	}, nil
}

func normalizeGitLabMerge(payload gitlabMergePayload) (*feed.Record, error) {
	attrs := payload.ObjectAttributes
	switch attrs.Action {
	case "open", "merge":
	default:
		return nil, nil
	}
	if attrs.ID == 0 {
		return nil, errors.New("merge_request payload missing id")
	}
	if attrs.SourceBranch == "" {
		return nil, errors.New("merge_request payload missing source branch")
	}
	if attrs.TargetBranch == "" {
		return nil, errors.New("merge_request payload missing target branch")
	}
	author := payload.User.Username
	if author == "" {
		author = payload.User.Name
	}

	rec := &feed.Record{
		RequestID:  strconv.FormatInt(attrs.ID, 10),
		FromBranch: attrs.SourceBranch,
		ToBranch:   attrs.TargetBranch,
	}
	switch attrs.Action {
	case "open":
		if author == "" {
			return nil, errors.New("merge_request payload missing user")
		}
		if attrs.CreatedAt == "" {
			return nil, errors.New("merge_request payload missing created_at")
		}
		rec.Author = author
		rec.Action = feed.ActionPullRequest
		rec.Timestamp = canonicalTimestamp(attrs.CreatedAt)
	case "merge":
		if author == "" {
			author = "Unknown"
		}
		if attrs.UpdatedAt == "" {
			return nil, errors.New("merge_request payload missing updated_at")
		}
		rec.Author = author
		rec.Action = feed.ActionMerge
		rec.Timestamp = canonicalTimestamp(attrs.UpdatedAt)
	}
	return rec, nil
}
