// Package archive builds the in-memory snapshot that the static page embeds.
package archive

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesm/github-issue-archive/internal/db"
	"github.com/wesm/github-issue-archive/internal/models"
)

// Reader is the read side of the issue store
type Reader interface {
	ListRepositories(ctx context.Context) ([]models.Repository, error)
	ListIssues(ctx context.Context) ([]db.IssueRow, error)
	ListLabels(ctx context.Context) ([]models.Label, error)
}

// Assembler joins repositories, issues and labels into an ArchiveSnapshot
type Assembler struct {
	store  Reader
	logger *logrus.Logger
	now    func() time.Time
}

// NewAssembler creates a new assembler reading from store
func NewAssembler(store Reader, logger *logrus.Logger) *Assembler {
	return &Assembler{store: store, logger: logger, now: time.Now}
}

// Assemble reads the whole store and returns a fresh snapshot. Issues keep
// the store's ordering, most recently updated first. Any read error aborts
// the assembly.
func (a *Assembler) Assemble(ctx context.Context) (*models.ArchiveSnapshot, error) {
	repos, err := a.store.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := a.store.ListIssues(ctx)
	if err != nil {
		return nil, err
	}

	labels, err := a.store.ListLabels(ctx)
	if err != nil {
		return nil, err
	}

	labelsByIssue := make(map[int64][]models.ArchiveLabel)
	for _, label := range labels {
		labelsByIssue[label.IssueID] = append(labelsByIssue[label.IssueID], models.ArchiveLabel{
			Name:  label.Name,
			Color: label.Color,
		})
	}

	snapshot := &models.ArchiveSnapshot{
		Repos:       repos,
		Issues:      make([]models.ArchiveIssue, 0, len(rows)),
		GeneratedAt: a.now().UTC(),
	}
	if snapshot.Repos == nil {
		snapshot.Repos = []models.Repository{}
	}

	for _, row := range rows {
		issueLabels := labelsByIssue[row.ID]
		if issueLabels == nil {
			issueLabels = []models.ArchiveLabel{}
		}

		snapshot.Issues = append(snapshot.Issues, models.ArchiveIssue{
			ID:           row.ID,
			RepositoryID: row.RepositoryID,
			Number:       row.Number,
			Title:        row.Title,
			Body:         row.Body,
			State:        row.State,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
			URL:          row.URL,
			Author:       row.Author,
			RepoOwner:    row.RepoOwner,
			RepoName:     row.RepoName,
			Labels:       issueLabels,
		})

		if row.State == models.IssueStateOpen {
			snapshot.OpenIssues++
		}
	}

	snapshot.TotalIssues = len(snapshot.Issues)
	snapshot.TotalRepos = len(snapshot.Repos)
	snapshot.ClosedIssues = snapshot.TotalIssues - snapshot.OpenIssues

	a.logger.WithFields(logrus.Fields{
		"issues": snapshot.TotalIssues,
		"repos":  snapshot.TotalRepos,
		"open":   snapshot.OpenIssues,
	}).Info("Assembled archive snapshot")

	return snapshot, nil
}
