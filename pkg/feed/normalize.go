package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Event categories the normalizer understands. Deliveries for any other
// category are acknowledged and dropped.
const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

// Normalize maps a raw payload for the named event category into a canonical
// record. A nil record with a nil error means the delivery is not actionable
// and nothing should be stored. An error means a required field was missing
// on a matched category/action, which is a sender contract violation and is
// surfaced to the caller rather than swallowed.
func Normalize(eventName string, raw []byte) (*Record, error) {
	switch eventName {
	case EventPush:
		var payload PushPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode push payload: %w", err)
		}
		return NormalizePush(payload)
	case EventPullRequest:
		var payload PullRequestPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode pull_request payload: %w", err)
		}
		return NormalizePullRequest(payload)
	default:
		return nil, nil
	}
}

// NormalizePush converts a push payload. Pushes without a head commit do not
// move a branch tip and produce no record.
func NormalizePush(payload PushPayload) (*Record, error) {
	if payload.HeadCommit == nil {
		return nil, nil
	}
	if payload.After == "" {
		return nil, errors.New("push payload missing after hash")
	}
	if payload.Pusher.Name == "" {
		return nil, errors.New("push payload missing pusher name")
	}
	if payload.Ref == "" {
		return nil, errors.New("push payload missing ref")
	}
	if payload.HeadCommit.Timestamp == "" {
		return nil, errors.New("push payload missing head commit timestamp")
	}
	return &Record{
		RequestID: payload.After,
		Author:    payload.Pusher.Name,
		Action:    ActionPush,
		ToBranch:  BranchFromRef(payload.Ref),
		Timestamp: payload.HeadCommit.Timestamp,
	}, nil
}

// NormalizePullRequest converts a pull_request payload. Only "opened" and
// merged "closed" deliveries produce records; an unmerged close is noise.
func NormalizePullRequest(payload PullRequestPayload) (*Record, error) {
	pr := payload.PullRequest
	switch {
	case payload.Action == "opened":
		if err := requirePullRequestRefs(pr); err != nil {
			return nil, err
		}
		if pr.User.Login == "" {
			return nil, errors.New("pull_request payload missing user login")
		}
		if pr.CreatedAt == "" {
			return nil, errors.New("pull_request payload missing created_at")
		}
		return &Record{
			RequestID:  strconv.FormatInt(pr.ID, 10),
			Author:     pr.User.Login,
			Action:     ActionPullRequest,
			FromBranch: pr.Head.Ref,
			ToBranch:   pr.Base.Ref,
			Timestamp:  pr.CreatedAt,
		}, nil
	case payload.Action == "closed" && pr.Merged:
		if err := requirePullRequestRefs(pr); err != nil {
			return nil, err
		}
		if pr.MergedAt == "" {
			return nil, errors.New("pull_request payload missing merged_at")
		}
		author := "Unknown"
		if pr.MergedBy != nil && pr.MergedBy.Login != "" {
			author = pr.MergedBy.Login
		}
		return &Record{
			RequestID:  strconv.FormatInt(pr.ID, 10),
			Author:     author,
			Action:     ActionMerge,
			FromBranch: pr.Head.Ref,
			ToBranch:   pr.Base.Ref,
			Timestamp:  pr.MergedAt,
		}, nil
	default:
		return nil, nil
	}
}

func requirePullRequestRefs(pr PullRequest) error {
	if pr.ID == 0 {
		return errors.New("pull_request payload missing id")
	}
	if pr.Head.Ref == "" {
		return errors.New("pull_request payload missing head ref")
	}
	if pr.Base.Ref == "" {
		return errors.New("pull_request payload missing base ref")
	}
	return nil
}

// BranchFromRef reduces a ref such as "refs/heads/main" to its final path
// segment.
func BranchFromRef(ref string) string {
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}
