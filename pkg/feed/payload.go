package feed

// Inbound payloads are decoded into one explicit variant per supported event
// category instead of being walked as loose maps. Only the fields the
// normalizer reads are declared; everything else in the delivery is ignored.

// PushPayload is the push-event subset the normalizer reads.
type PushPayload struct {
	Ref        string      `json:"ref"`
	After      string      `json:"after"`
	Pusher     Pusher      `json:"pusher"`
	HeadCommit *HeadCommit `json:"head_commit"`
}

// Pusher identifies who performed a push.
type Pusher struct {
	Name string `json:"name"`
}

// HeadCommit is present only on pushes that move a branch tip. Branch
// creations and deletions deliver a null head_commit.
type HeadCommit struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

// PullRequestPayload is the pull_request-event subset the normalizer reads.
type PullRequestPayload struct {
	Action      string      `json:"action"`
	PullRequest PullRequest `json:"pull_request"`
}

// PullRequest carries the fields shared by opened and merged pull requests.
type PullRequest struct {
	ID        int64    `json:"id"`
	User      Account  `json:"user"`
	Head      Branch   `json:"head"`
	Base      Branch   `json:"base"`
	CreatedAt string   `json:"created_at"`
	Merged    bool     `json:"merged"`
	MergedAt  string   `json:"merged_at"`
	MergedBy  *Account `json:"merged_by"`
}

// Account is a provider account reference.
type Account struct {
	Login string `json:"login"`
}

// Branch is one side of a pull request.
type Branch struct {
	Ref string `json:"ref"`
}
