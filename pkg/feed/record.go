package feed

// Action classifies a canonical repository event.
type Action string

const (
	ActionPush        Action = "PUSH"
	ActionPullRequest Action = "PULL_REQUEST"
	ActionMerge       Action = "MERGE"
)

// Record is the canonical, stored representation of one repository event.
// The (RequestID, Action) pair is the deduplication key: at most one stored
// record may exist per pair. Records are immutable once stored.
type Record struct {
	// RequestID is the source-provided identifier of the underlying change:
	// the post-push commit hash for pushes, the pull request's numeric id in
	// string form for pull-request and merge events.
	RequestID string `json:"request_id"`
	// Author is the display name of the actor.
	Author string `json:"author"`
	Action Action `json:"action"`
	// FromBranch is empty for PUSH records.
	FromBranch string `json:"from_branch"`
	ToBranch   string `json:"to_branch"`
	// Timestamp is kept verbatim as sent by the provider and parsed only at
	// display time.
	Timestamp string `json:"timestamp"`
}
