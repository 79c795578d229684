package gitsync

import "go_gitsync/internal/model"

// GitCommandType 远端git任务类型
type GitCommandType string

const (
	GitCommandCommitAndPush GitCommandType = "COMMIT_AND_PUSH"
	GitCommandDiff          GitCommandType = "DIFF"
)

// GitCommandStatus 任务执行结果状态
type GitCommandStatus string

const (
	GitCommandSuccess GitCommandStatus = "SUCCESS"
	GitCommandFailure GitCommandStatus = "FAILURE"
)

// ErrorCode classifies a failed git task so reconciliation can branch on it.
type ErrorCode string

const (
	// ErrorCodeUnseenHead means the push precondition failed: the remote head
	// was not the last commit this system processed. The push is retried after
	// the remote changes have been ingested.
	ErrorCodeUnseenHead ErrorCode = "UNSEEN_HEAD_COMMIT"
	// ErrorCodeCommitNotInOrder means the worker saw a commit older than one
	// already processed. Not a connectivity problem, so no alert is raised.
	ErrorCodeCommitNotInOrder ErrorCode = "COMMIT_NOT_IN_ORDER"
	ErrorCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
)

// RepositoryInfo tells the worker which repository and branch to operate on.
type RepositoryInfo struct {
	GitConnectorID string `json:"gitConnectorId"`
	RepositoryURL  string `json:"repositoryUrl"`
	BranchName     string `json:"branchName"`
	AuthRef        string `json:"authRef,omitempty"`
}

// GitCommandRequest is queued to the remote git worker. The worker posts a
// GitCommandResult carrying the same wait id to the callback endpoint.
type GitCommandRequest struct {
	WaitID                string                `json:"waitId"`
	AccountID             string                `json:"accountId"`
	Command               GitCommandType        `json:"command"`
	Repo                  RepositoryInfo        `json:"repo"`
	FileChanges           []model.GitFileChange `json:"fileChanges,omitempty"`
	ForcePush             bool                  `json:"forcePush,omitempty"`
	PushOnlyIfHeadSeen    bool                  `json:"pushOnlyIfHeadSeen,omitempty"`
	LastProcessedCommitID string                `json:"lastProcessedCommitId,omitempty"`
	EndCommitID           string                `json:"endCommitId,omitempty"`
	TimeoutSec            int                   `json:"timeoutSec,omitempty"`
}

// CommitAndPushResult is the success payload of a COMMIT_AND_PUSH task.
type CommitAndPushResult struct {
	CommitID      string                `json:"commitId"`
	CommitMessage string                `json:"commitMessage,omitempty"`
	PushedChanges []model.GitFileChange `json:"pushedChanges,omitempty"`
}

// DiffResult is the success payload of a DIFF task.
type DiffResult struct {
	CommitID string                `json:"commitId"`
	Changes  []model.GitFileChange `json:"changes"`
}

// GitCommandResult is what the worker posts back when a task finishes.
type GitCommandResult struct {
	WaitID        string               `json:"waitId"`
	Command       GitCommandType       `json:"command"`
	Status        GitCommandStatus     `json:"status"`
	ErrorCode     ErrorCode            `json:"errorCode,omitempty"`
	ErrorMessage  string               `json:"errorMessage,omitempty"`
	CommitAndPush *CommitAndPushResult `json:"commitAndPush,omitempty"`
	Diff          *DiffResult          `json:"diff,omitempty"`
}
