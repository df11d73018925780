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

	"github.com/go-playground/webhooks/v6/bitbucket"
)

// BitbucketHandler handles incoming webhooks from Bitbucket.
type BitbucketHandler struct {
	hook *bitbucket.Webhook
	opts Options
}

var bitbucketEvents = []bitbucket.Event{
	bitbucket.RepoPushEvent,
	bitbucket.RepoForkEvent,
	bitbucket.RepoUpdatedEvent,
	bitbucket.RepoCommitCommentCreatedEvent,
	bitbucket.RepoCommitStatusCreatedEvent,
	bitbucket.RepoCommitStatusUpdatedEvent,
	bitbucket.IssueCreatedEvent,
	bitbucket.IssueUpdatedEvent,
	bitbucket.IssueCommentCreatedEvent,
	bitbucket.PullRequestCreatedEvent,
	bitbucket.PullRequestUpdatedEvent,
	bitbucket.PullRequestApprovedEvent,
	bitbucket.PullRequestUnapprovedEvent,
	bitbucket.PullRequestMergedEvent,
	bitbucket.PullRequestDeclinedEvent,
	bitbucket.PullRequestCommentCreatedEvent,
	bitbucket.PullRequestCommentUpdatedEvent,
	bitbucket.PullRequestCommentDeletedEvent,
}

// NewBitbucketHandler creates a new BitbucketHandler.
func NewBitbucketHandler(uuid string, opts Options) (*BitbucketHandler, error) {
	options := make([]bitbucket.Option, 0, 1)
	if uuid != "" {
		options = append(options, bitbucket.Options.UUID(uuid))
	}
	hook, err := bitbucket.New(options...)
	if err != nil {
		return nil, err
	}
	return &BitbucketHandler{hook: hook, opts: opts.withDefaults()}, nil
}

// ServeHTTP handles an incoming HTTP request.
func (h *BitbucketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	internal.IncRequest("bitbucket")
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
		logDebugEvent(logger, "bitbucket", r.Header.Get("X-Event-Key"), rawBody)
	}

	if _, err := h.hook.Parse(r, bitbucketEvents...); err != nil {
		// Bitbucket only sends X-Hook-UUID when the hook has one configured.
		if errors.Is(err, bitbucket.ErrMissingHookUUIDHeader) {
			logger.Printf("bitbucket parse warning: %v; skipping UUID verification", err)
			r.Body = io.NopCloser(bytes.NewReader(rawBody))
			unverified, fallbackErr := bitbucket.New()
			if fallbackErr == nil {
				_, err = unverified.Parse(r, bitbucketEvents...)
			} else {
				err = fallbackErr
			}
		}
		if err != nil {
			internal.IncParseError("bitbucket")
			logger.Printf("bitbucket parse failed: %v", err)
			statusJSON(w, http.StatusBadRequest, map[string]string{"error": "could not parse webhook"})
			return
		}
	}

	eventKey := r.Header.Get("X-Event-Key")
	event := &internal.Event{
		Provider:   "bitbucket",
		Name:       eventKey,
		RequestID:  reqID,
		RawPayload: rawBody,
	}

	status := "accepted"
	switch eventKey {
	case "repo:push", "pullrequest:created", "pullrequest:fulfilled":
		rec, err := normalizeBitbucket(eventKey, rawBody)
		if err != nil {
			internal.IncParseError("bitbucket")
			logger.Printf("bitbucket %s rejected: %v", eventKey, err)
			statusJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if rec == nil {
			internal.IncIgnored("bitbucket")
			status = "ignored"
			break
		}
		event.Record = rec
		outcome, err := h.opts.record(r.Context(), rec)
		if err != nil {
			logger.Printf("bitbucket store failed: %v", err)
			statusJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
			return
		}
		if outcome == statusDuplicate {
			logger.Printf("bitbucket duplicate event %s/%s", rec.RequestID, rec.Action)
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

type bitbucketUser struct {
	Nickname    string `json:"nickname"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func (u bitbucketUser) name() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	if u.Username != "" {
		return u.Username
	}
	return u.DisplayName
}

type bitbucketPushPayload struct {
	Actor bitbucketUser `json:"actor"`
	Push  struct {
		Changes []bitbucketChange `json:"changes"`
	} `json:"push"`
}

type bitbucketChange struct {
	New *bitbucketRefState `json:"new"`
}

type bitbucketRefState struct {
	Name   string `json:"name"`
	Target struct {
		Hash string `json:"hash"`
		Date string `json:"date"`
	} `json:"target"`
}

type bitbucketPullRequestPayload struct {
	Actor       bitbucketUser `json:"actor"`
	PullRequest struct {
		ID          int64         `json:"id"`
		Author      bitbucketUser `json:"author"`
		CreatedOn   string        `json:"created_on"`
		UpdatedOn   string        `json:"updated_on"`
		Source      bitbucketRef  `json:"source"`
		Destination bitbucketRef  `json:"destination"`
	} `json:"pullrequest"`
}

type bitbucketRef struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
}

// normalizeBitbucket maps Bitbucket Cloud hooks onto canonical records.
// Bitbucket timestamps carry sub-second precision, so they are
// canonicalized before storage.
func normalizeBitbucket(eventKey string, raw []byte) (*feed.Record, error) {
	switch eventKey {
	case "repo:push":
		var payload bitbucketPushPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return normalizeBitbucketPush(payload)
	case "pullrequest:created", "pullrequest:fulfilled":
		var payload bitbucketPullRequestPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return normalizeBitbucketPullRequest(eventKey, payload)
	default:
		return nil, nil
	}
}

func normalizeBitbucketPush(payload bitbucketPushPayload) (*feed.Record, error) {
	// A push that only removes refs has no new state and produces no record.
	var state *bitbucketRefState
	for _, change := range payload.Push.Changes {
		if change.New != nil {
			state = change.New
			break
		}
	}
	if state == nil {
		return nil, nil
	}
	if state.Target.Hash == "" {
		return nil, errors.New("push payload missing target hash")
	}
	if state.Name == "" {
		return nil, errors.New("push payload missing branch name")
	}
	if state.Target.Date == "" {
		return nil, errors.New("push payload missing target date")
	}
	author := payload.Actor.name()
	if author == "" {
		return nil, errors.New("push payload missing actor")
	}
	return &feed.Record{
		RequestID: state.Target.Hash,
		Author:    author,
		Action:    feed.ActionPush,
		ToBranch:  state.Name,
		Timestamp: canonicalTimestamp(state.Target.Date),
	}, nil
}

func normalizeBitbucketPullRequest(eventKey string, payload bitbucketPullRequestPayload) (*feed.Record, error) {
	pr := payload.PullRequest
	if pr.ID == 0 {
		return nil, errors.New("pullrequest payload missing id")
	}
	if pr.Source.Branch.Name == "" {
		return nil, errors.New("pullrequest payload missing source branch")
	}
	if pr.Destination.Branch.Name == "" {
		return nil, errors.New("pullrequest payload missing destination branch")
	}

	rec := &feed.Record{
		RequestID:  strconv.FormatInt(pr.ID, 10),
		FromBranch: pr.Source.Branch.Name,
		ToBranch:   pr.Destination.Branch.Name,
	}
	switch eventKey {
	case "pullrequest:created":
		author := pr.Author.name()
		if author == "" {
			return nil, errors.New("pullrequest payload missing author")
		}
		if pr.CreatedOn == "" {
			return nil, errors.New("pullrequest payload missing created_on")
		}
		rec.Author = author
		rec.Action = feed.ActionPullRequest
		rec.Timestamp = canonicalTimestamp(pr.CreatedOn)
	case "pullrequest:fulfilled":
		author := payload.Actor.name()
		if author == "" {
			author = "Unknown"
		}
		if pr.UpdatedOn == "" {
			return nil, errors.New("pullrequest payload missing updated_on")
		}
		rec.Author = author
		rec.Action = feed.ActionMerge
		rec.Timestamp = canonicalTimestamp(pr.UpdatedOn)
	}
	return rec, nil
}
