package domain

import "time"

// Push statuses and stages. The stages run in strict order; Stage on a
// failed version names the first one that failed.
const (
	PushStatusPending = "pending"
	PushStatusSuccess = "success"
	PushStatusFailed  = "failed"

	StageEnsureAddresses = "ensure_addresses"
	StageCommit          = "commit"
	StagePush            = "push"
)

// PushVersion is one rendered artifact and the outcome of pushing it.
type PushVersion struct {
	ID               string     `json:"id" db:"id"`
	VersionNumber    int        `json:"version_number" db:"version_number"`
	RenderedArtifact string     `json:"rendered_artifact" db:"rendered_artifact"`
	Status           string     `json:"status" db:"status"`
	Stage            string     `json:"stage,omitempty" db:"stage"`
	Error            string     `json:"error,omitempty" db:"error"`
	CommitJob        string     `json:"commit_job,omitempty" db:"commit_job"`
	PushJob          string     `json:"push_job,omitempty" db:"push_job"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	PushedAt         *time.Time `json:"pushed_at,omitempty" db:"pushed_at"`
}

// PushResponse is returned by sync and redeploy endpoints.
type PushResponse struct {
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	Status        string `json:"status"`
	Stage         string `json:"stage,omitempty"`
	Error         string `json:"error,omitempty"`
}
