package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"

	"github.com/wesm/github-issue-archive/internal/api"
	"github.com/wesm/github-issue-archive/internal/models"
)

// IssueFetcher lists every issue of a repository. On failure it returns the
// issues fetched so far along with the error.
type IssueFetcher interface {
	FetchAll(ctx context.Context, owner, name string) ([]*github.Issue, error)
}

// Store is the write side of the issue store used during a sync
type Store interface {
	UpsertRepository(ctx context.Context, owner, name string) (int64, error)
	SaveIssueWithLabels(ctx context.Context, repoID int64, issue *models.Issue, labels []models.Label) (int64, error)
}

// Syncer handles syncing GitHub issues to the local database
type Syncer struct {
	db     Store
	client IssueFetcher
	logger *logrus.Logger

	// repository ids resolved during this Syncer's lifetime
	repoIDs map[string]int64
}

// New creates a new syncer
func New(db Store, client IssueFetcher, logger *logrus.Logger) *Syncer {
	return &Syncer{
		db:      db,
		client:  client,
		logger:  logger,
		repoIDs: make(map[string]int64),
	}
}

// RepoResult is the outcome of syncing one repository
type RepoResult struct {
	Repository   string
	Fetched      int
	PullRequests int
	Saved        int
	// Incomplete is set when pagination stopped early on a fetch error
	Incomplete bool
	FetchErr   error
	// Err is set when the repository step aborted
	Err error
}

// Report summarizes a SyncAll run
type Report struct {
	Results  []RepoResult
	Duration time.Duration
}

// Failed returns the results whose step aborted
func (r *Report) Failed() []RepoResult {
	var failed []RepoResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Incomplete returns the results whose fetch stopped early
func (r *Report) Incomplete() []RepoResult {
	var incomplete []RepoResult
	for _, res := range r.Results {
		if res.Incomplete {
			incomplete = append(incomplete, res)
		}
	}
	return incomplete
}

// SavedTotal returns the number of issues written across all repositories
func (r *Report) SavedTotal() int {
	total := 0
	for _, res := range r.Results {
		total += res.Saved
	}
	return total
}

// SyncAll syncs the repositories in the given order. A failure in one
// repository is recorded in the report and does not stop the others.
func (s *Syncer) SyncAll(ctx context.Context, repos []string) *Report {
	startTime := time.Now()
	report := &Report{}

	s.logger.Infof("Syncing %d repositories", len(repos))
	for _, repoStr := range repos {
		owner, name, err := ParseRepositoryString(repoStr)
		if err != nil {
			s.logger.WithError(err).Errorf("Skipping invalid repository %s", repoStr)
			report.Results = append(report.Results, RepoResult{Repository: repoStr, Err: err})
			continue
		}

		result, err := s.SyncRepository(ctx, owner, name)
		if err != nil {
			s.logger.WithError(err).Errorf("Failed to sync repository %s", result.Repository)
		}
		report.Results = append(report.Results, *result)
	}

	report.Duration = time.Since(startTime)
	s.logger.WithFields(logrus.Fields{
		"repositories": len(report.Results),
		"saved":        report.SavedTotal(),
		"failed":       len(report.Failed()),
		"incomplete":   len(report.Incomplete()),
		"duration":     report.Duration.Round(time.Millisecond),
	}).Info("Sync completed")

	return report
}

// SyncRepository fetches a repository's issues and writes them to the store.
// A fetch error leaves the result incomplete but still persists what was
// fetched. A storage error aborts the repository and is returned.
func (s *Syncer) SyncRepository(ctx context.Context, owner, name string) (*RepoResult, error) {
	fullName := fmt.Sprintf("%s/%s", owner, name)
	result := &RepoResult{Repository: fullName}
	logger := s.logger.WithField("repo", fullName)

	logger.Info("Fetching issues from GitHub")
	ghIssues, fetchErr := s.client.FetchAll(ctx, owner, name)
	result.Fetched = len(ghIssues)
	if fetchErr != nil {
		result.Incomplete = true
		result.FetchErr = fetchErr
		logger.WithError(fetchErr).Warnf("Fetch incomplete, continuing with %d fetched entries", len(ghIssues))
	}

	issues := make([]*github.Issue, 0, len(ghIssues))
	for _, issue := range ghIssues {
		if issue.IsPullRequest() {
			result.PullRequests++
			continue
		}
		issues = append(issues, issue)
	}

	if len(issues) == 0 {
		logger.Info("No issues to sync")
		return result, nil
	}

	repoID, err := s.repositoryID(ctx, owner, name)
	if err != nil {
		result.Err = err
		return result, err
	}

	for _, ghIssue := range issues {
		issue := api.ConvertGitHubIssue(ghIssue)
		labels := api.ConvertGitHubLabels(ghIssue)

		if _, err := s.db.SaveIssueWithLabels(ctx, repoID, issue, labels); err != nil {
			result.Err = fmt.Errorf("issue #%d: %w", issue.Number, err)
			return result, result.Err
		}
		result.Saved++
	}

	logger.WithFields(logrus.Fields{
		"saved":         result.Saved,
		"pull_requests": result.PullRequests,
		"incomplete":    result.Incomplete,
	}).Info("Synced repository")

	return result, nil
}

func (s *Syncer) repositoryID(ctx context.Context, owner, name string) (int64, error) {
	key := owner + "/" + name
	if id, ok := s.repoIDs[key]; ok {
		return id, nil
	}

	id, err := s.db.UpsertRepository(ctx, owner, name)
	if err != nil {
		return 0, err
	}
	s.repoIDs[key] = id
	return id, nil
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}

	owner, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}
	return owner, name, nil
}
