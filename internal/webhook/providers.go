package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Payload is the provider-independent view of one webhook event.
type Payload struct {
	// Ping marks provider health-check events that carry no commit.
	Ping bool
	// SkipReason is set for recognized events this system deliberately
	// ignores.
	SkipReason string

	BranchName         string
	HeadCommitID       string
	RepositoryFullName string
}

// Provider parses one git host's webhook format.
type Provider interface {
	Name() string
	Matches(headers http.Header) bool
	Parse(body []byte) (*Payload, error)
}

// Providers returns all supported webhook providers in match order.
func Providers() []Provider {
	return []Provider{
		githubProvider{},
		gitlabProvider{},
		bitbucketProvider{},
		azureProvider{},
	}
}

func branchFromRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

// --- GitHub ---

type githubProvider struct{}

func (githubProvider) Name() string { return "github" }

func (githubProvider) Matches(headers http.Header) bool {
	return headers.Get("X-GitHub-Event") != ""
}

type githubPush struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Zen string `json:"zen"`
}

func (githubProvider) Parse(body []byte) (*Payload, error) {
	var event githubPush
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse github payload: %w", err)
	}
	// Ping events carry zen and no ref.
	if event.Zen != "" && event.Ref == "" {
		return &Payload{Ping: true}, nil
	}
	return &Payload{
		BranchName:         branchFromRef(event.Ref),
		HeadCommitID:       event.After,
		RepositoryFullName: event.Repository.FullName,
	}, nil
}

// --- GitLab ---

type gitlabProvider struct{}

func (gitlabProvider) Name() string { return "gitlab" }

func (gitlabProvider) Matches(headers http.Header) bool {
	return headers.Get("X-Gitlab-Event") != ""
}

type gitlabPush struct {
	ObjectKind  string `json:"object_kind"`
	Ref         string `json:"ref"`
	CheckoutSHA string `json:"checkout_sha"`
	After       string `json:"after"`
	Project     struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
}

func (gitlabProvider) Parse(body []byte) (*Payload, error) {
	var event gitlabPush
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse gitlab payload: %w", err)
	}
	if event.ObjectKind != "" && event.ObjectKind != "push" {
		return &Payload{SkipReason: fmt.Sprintf("ignoring gitlab %s event", event.ObjectKind)}, nil
	}

	head := event.CheckoutSHA
	if head == "" {
		head = event.After
	}
	return &Payload{
		BranchName:         branchFromRef(event.Ref),
		HeadCommitID:       head,
		RepositoryFullName: event.Project.PathWithNamespace,
	}, nil
}

// --- Bitbucket ---

type bitbucketProvider struct{}

func (bitbucketProvider) Name() string { return "bitbucket" }

func (bitbucketProvider) Matches(headers http.Header) bool {
	return headers.Get("X-Event-Key") != "" && headers.Get("X-GitHub-Event") == ""
}

type bitbucketPush struct {
	Push struct {
		Changes []struct {
			New struct {
				Name string `json:"name"`
			} `json:"new"`
			Commits []struct {
				Hash string `json:"hash"`
			} `json:"commits"`
		} `json:"changes"`
	} `json:"push"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

func (bitbucketProvider) Parse(body []byte) (*Payload, error) {
	var event bitbucketPush
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse bitbucket payload: %w", err)
	}
	// The diagnostics ping has no push section.
	if len(event.Push.Changes) == 0 {
		return &Payload{Ping: true}, nil
	}

	change := event.Push.Changes[0]
	head := ""
	if len(change.Commits) > 0 {
		head = change.Commits[0].Hash
	}
	return &Payload{
		BranchName:         change.New.Name,
		HeadCommitID:       head,
		RepositoryFullName: event.Repository.FullName,
	}, nil
}

// --- Azure DevOps ---

type azureProvider struct{}

func (azureProvider) Name() string { return "azure" }

func (azureProvider) Matches(headers http.Header) bool {
	vssHeader := headers.Get("X-Vss-Activityid") != "" || headers.Get("X-Vss-Subscriptionid") != ""
	return vssHeader
}

type azureEvent struct {
	EventType string `json:"eventType"`
	Resource  struct {
		Status     string `json:"status"`
		RefUpdates []struct {
			Name        string `json:"name"`
			NewObjectID string `json:"newObjectId"`
		} `json:"refUpdates"`
		Repository struct {
			Name    string `json:"name"`
			Project struct {
				Name string `json:"name"`
			} `json:"project"`
		} `json:"repository"`
	} `json:"resource"`
}

func (azureProvider) Parse(body []byte) (*Payload, error) {
	var event azureEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse azure devops payload: %w", err)
	}

	switch event.EventType {
	case "":
		return &Payload{Ping: true}, nil
	case "git.pullrequest.merged":
		// Azure sends the merged event while the PR is still active; the
		// push event that follows carries the real commit.
		if event.Resource.Status == "active" {
			return &Payload{SkipReason: "ignoring azure devops active pull request event"}, nil
		}
		return &Payload{SkipReason: "ignoring azure devops pull request event"}, nil
	case "git.push":
	default:
		return &Payload{SkipReason: fmt.Sprintf("ignoring azure devops %s event", event.EventType)}, nil
	}

	var branch, head string
	if len(event.Resource.RefUpdates) > 0 {
		branch = branchFromRef(event.Resource.RefUpdates[0].Name)
		head = event.Resource.RefUpdates[0].NewObjectID
	}
	fullName := event.Resource.Repository.Name
	if project := event.Resource.Repository.Project.Name; project != "" && fullName != "" {
		fullName = project + "/" + fullName
	}
	return &Payload{
		BranchName:         branch,
		HeadCommitID:       head,
		RepositoryFullName: fullName,
	}, nil
}
