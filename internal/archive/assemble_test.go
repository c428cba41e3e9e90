package archive

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/github-issue-archive/internal/apperrors"
	"github.com/wesm/github-issue-archive/internal/db"
	"github.com/wesm/github-issue-archive/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "issues.db"), testLogger())
	require.NoError(t, err)
	require.NoError(t, database.Initialize(context.Background()))
	t.Cleanup(func() { database.Close() })
	return database
}

func seedIssue(t *testing.T, database *db.DB, repoID int64, number int, state, updatedAt string, labels ...models.Label) {
	t.Helper()
	_, err := database.SaveIssueWithLabels(context.Background(), repoID, &models.Issue{
		Number:    number,
		Title:     "Issue",
		State:     state,
		CreatedAt: "2023-12-31T00:00:00Z",
		UpdatedAt: updatedAt,
		URL:       "https://github.com/acme/widgets/issues/1",
		Author:    "octocat",
	}, labels)
	require.NoError(t, err)
}

func TestAssemble(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	widgets, err := database.UpsertRepository(ctx, "acme", "widgets")
	require.NoError(t, err)
	gadgets, err := database.UpsertRepository(ctx, "acme", "gadgets")
	require.NoError(t, err)

	seedIssue(t, database, widgets, 1, "open", "2024-01-03T09:00:00Z", models.Label{Name: "bug", Color: "d73a4a"})
	seedIssue(t, database, widgets, 2, "closed", "2024-01-01T09:00:00Z")
	seedIssue(t, database, gadgets, 7, "open", "2024-01-02T09:00:00Z",
		models.Label{Name: "ui", Color: "00ff00"}, models.Label{Name: "help wanted"})

	fixed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	assembler := NewAssembler(database, testLogger())
	assembler.now = func() time.Time { return fixed }

	snapshot, err := assembler.Assemble(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.TotalIssues)
	assert.Equal(t, 2, snapshot.TotalRepos)
	assert.Equal(t, 2, snapshot.OpenIssues)
	assert.Equal(t, 1, snapshot.ClosedIssues)
	assert.Equal(t, fixed, snapshot.GeneratedAt)

	require.Len(t, snapshot.Issues, 3)
	assert.Equal(t, "2024-01-03T09:00:00Z", snapshot.Issues[0].UpdatedAt)
	assert.Equal(t, "2024-01-02T09:00:00Z", snapshot.Issues[1].UpdatedAt)
	assert.Equal(t, "2024-01-01T09:00:00Z", snapshot.Issues[2].UpdatedAt)

	assert.Equal(t, "widgets", snapshot.Issues[0].RepoName)
	assert.Equal(t, []models.ArchiveLabel{{Name: "bug", Color: "d73a4a"}}, snapshot.Issues[0].Labels)
	assert.Equal(t, "gadgets", snapshot.Issues[1].RepoName)
	assert.Equal(t, []models.ArchiveLabel{{Name: "ui", Color: "00ff00"}, {Name: "help wanted", Color: ""}}, snapshot.Issues[1].Labels)
	assert.NotNil(t, snapshot.Issues[2].Labels)
	assert.Empty(t, snapshot.Issues[2].Labels)
}

func TestAssemble_EmptyStore(t *testing.T) {
	snapshot, err := NewAssembler(setupTestDB(t), testLogger()).Assemble(context.Background())
	require.NoError(t, err)

	assert.Zero(t, snapshot.TotalIssues)
	assert.Zero(t, snapshot.TotalRepos)
	assert.NotNil(t, snapshot.Issues)
	assert.NotNil(t, snapshot.Repos)
}

type brokenReader struct {
	Reader
}

func (brokenReader) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	return nil, apperrors.NewStorageError("failed to query repositories", errors.New("database is locked"))
}

func TestAssemble_ReadErrorAborts(t *testing.T) {
	snapshot, err := NewAssembler(brokenReader{}, testLogger()).Assemble(context.Background())
	require.Error(t, err)
	assert.Nil(t, snapshot)
	assert.True(t, apperrors.IsStorage(err))
}
