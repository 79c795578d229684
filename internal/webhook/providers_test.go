package webhook

import (
	"net/http"
	"testing"
)

func headersWith(key, value string) http.Header {
	h := http.Header{}
	h.Set(key, value)
	return h
}

func TestProviderMatching(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
		want    string
	}{
		{"github", headersWith("X-GitHub-Event", "push"), "github"},
		{"gitlab", headersWith("X-Gitlab-Event", "Push Hook"), "gitlab"},
		{"bitbucket", headersWith("X-Event-Key", "repo:push"), "bitbucket"},
		{"azure", headersWith("X-Vss-Activityid", "abc"), "azure"},
		{"none", headersWith("Content-Type", "application/json"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			for _, p := range Providers() {
				if p.Matches(tt.headers) {
					got = p.Name()
					break
				}
			}
			if got != tt.want {
				t.Errorf("matched %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGithubParse(t *testing.T) {
	payload, err := githubProvider{}.Parse([]byte(`{
		"ref": "refs/heads/main",
		"after": "abc123",
		"repository": {"full_name": "acme/config"}
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.BranchName != "main" || payload.HeadCommitID != "abc123" || payload.RepositoryFullName != "acme/config" {
		t.Errorf("payload = %+v", payload)
	}

	ping, err := githubProvider{}.Parse([]byte(`{"zen": "Design for failure.", "hook_id": 1}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !ping.Ping {
		t.Error("zen payload not recognized as ping")
	}
}

func TestGitlabParse(t *testing.T) {
	payload, err := gitlabProvider{}.Parse([]byte(`{
		"object_kind": "push",
		"ref": "refs/heads/develop",
		"checkout_sha": "def456",
		"project": {"path_with_namespace": "acme/config"}
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.BranchName != "develop" || payload.HeadCommitID != "def456" || payload.RepositoryFullName != "acme/config" {
		t.Errorf("payload = %+v", payload)
	}

	skipped, err := gitlabProvider{}.Parse([]byte(`{"object_kind": "merge_request"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if skipped.SkipReason == "" {
		t.Error("non-push gitlab event not skipped")
	}
}

func TestBitbucketParse(t *testing.T) {
	payload, err := bitbucketProvider{}.Parse([]byte(`{
		"push": {"changes": [{"new": {"name": "main"}, "commits": [{"hash": "789abc"}]}]},
		"repository": {"full_name": "acme/config"}
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.BranchName != "main" || payload.HeadCommitID != "789abc" {
		t.Errorf("payload = %+v", payload)
	}

	ping, err := bitbucketProvider{}.Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !ping.Ping {
		t.Error("empty bitbucket payload not treated as ping")
	}
}

func TestAzureParse(t *testing.T) {
	payload, err := azureProvider{}.Parse([]byte(`{
		"eventType": "git.push",
		"resource": {
			"refUpdates": [{"name": "refs/heads/main", "newObjectId": "fff000"}],
			"repository": {"name": "config", "project": {"name": "acme"}}
		}
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.BranchName != "main" || payload.HeadCommitID != "fff000" || payload.RepositoryFullName != "acme/config" {
		t.Errorf("payload = %+v", payload)
	}

	// Active pull request merge events must be skipped, not ingested.
	skipped, err := azureProvider{}.Parse([]byte(`{
		"eventType": "git.pullrequest.merged",
		"resource": {"status": "active"}
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if skipped.SkipReason == "" {
		t.Error("active PR merge event not skipped")
	}
}
