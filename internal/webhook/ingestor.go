package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/gitsync"
	"go_gitsync/internal/model"
	"go_gitsync/internal/queue"

	"github.com/sirupsen/logrus"
)

// Ingestor turns inbound webhook requests into queued git->harness change
// sets. It never does git work itself; it only authenticates, parses,
// de-duplicates and enqueues.
type Ingestor struct {
	gitConfigs *gitconf.Service
	commits    *gitsync.CommitService
	changeSets *queue.ChangeSetService
	tokens     *TokenService
	providers  []Provider
	logger     *logrus.Entry
}

// NewIngestor creates an Ingestor
func NewIngestor(gitConfigs *gitconf.Service, commits *gitsync.CommitService, changeSets *queue.ChangeSetService, tokens *TokenService, logger *logrus.Entry) *Ingestor {
	return &Ingestor{
		gitConfigs: gitConfigs,
		commits:    commits,
		changeSets: changeSets,
		tokens:     tokens,
		providers:  Providers(),
		logger:     logger.WithField("component", "webhook-ingestor"),
	}
}

// Ingest handles one webhook delivery and returns a human-readable outcome
// message. Recognized-but-ignored events (pings, duplicate commits) return a
// message without an error.
//
// The token may be a connector-scoped token or the account-level one; with
// the latter the connector is resolved from the repository the payload
// names.
func (i *Ingestor) Ingest(accountID, token string, body []byte, headers http.Header) (string, error) {
	conn, connErr := i.gitConfigs.ConnectorByWebhookToken(accountID, token)
	if connErr != nil {
		ok, err := i.tokens.Validate(accountID, token)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("invalid webhook token")
		}
	}

	provider := i.matchProvider(headers)
	if provider == nil {
		return "", fmt.Errorf("unrecognized webhook provider")
	}

	payload, err := provider.Parse(body)
	if err != nil {
		return "", err
	}
	if payload.Ping {
		return "ping event received", nil
	}
	if payload.SkipReason != "" {
		return payload.SkipReason, nil
	}

	if payload.BranchName == "" {
		return "", fmt.Errorf("branch name could not be extracted from %s payload", provider.Name())
	}

	if conn == nil {
		conn, err = i.gitConfigs.ConnectorByRepositoryFullName(accountID, payload.RepositoryFullName)
		if err != nil {
			return "", err
		}
	}
	if conn.UrlType == model.GitUrlTypeAccount && payload.RepositoryFullName == "" {
		return "", fmt.Errorf("repository name is required for account level git connector")
	}

	if payload.HeadCommitID != "" {
		processed, err := i.commits.IsAlreadyProcessed(accountID, payload.HeadCommitID)
		if err != nil {
			return "", err
		}
		if processed {
			return "Commit already processed", nil
		}
	}

	headerJSON, err := json.Marshal(map[string][]string(headers))
	if err != nil {
		headerJSON = []byte("{}")
	}

	cs := &model.ChangeSet{
		AccountID:    accountID,
		AppID:        gitconf.GlobalAppID,
		GitToHarness: true,
		Webhook: &model.GitWebhookRequestAttributes{
			GitConnectorID:     conn.ID,
			BranchName:         payload.BranchName,
			RepositoryFullName: payload.RepositoryFullName,
			HeadCommitID:       payload.HeadCommitID,
			WebhookBody:        string(body),
			WebhookHeaders:     string(headerJSON),
		},
	}
	if err := i.changeSets.Save(cs); err != nil {
		return "", err
	}

	i.logger.Infof("Webhook from %s queued change set %s (branch=%s head=%s)",
		provider.Name(), cs.ID, payload.BranchName, payload.HeadCommitID)
	return fmt.Sprintf("Change set %s queued", cs.ID), nil
}

func (i *Ingestor) matchProvider(headers http.Header) Provider {
	for _, p := range i.providers {
		if p.Matches(headers) {
			return p
		}
	}
	return nil
}
