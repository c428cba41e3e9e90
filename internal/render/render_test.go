package render

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/github-issue-archive/internal/apperrors"
	"github.com/wesm/github-issue-archive/internal/models"
)

const testMarkup = `<html>
<head>
<link rel="stylesheet" href="style.css">
</head>
<body>
<script>var issues = {{ISSUES_DATA}};</script>
<script src="script.js"></script>
</body>
</html>
`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeTemplates(t *testing.T, markup, style, script string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "templates")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexAsset), []byte(markup), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, StyleAsset), []byte(style), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ScriptAsset), []byte(script), 0644))
	return dir
}

func fixedSnapshot() *models.ArchiveSnapshot {
	return &models.ArchiveSnapshot{
		Repos: []models.Repository{{ID: 1, Owner: "acme", Name: "widgets"}},
		Issues: []models.ArchiveIssue{
			{
				ID: 1, RepositoryID: 1, Number: 2, Title: "Closing </script> tags", State: "closed",
				CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-02T00:00:00Z",
				URL: "https://github.com/acme/widgets/issues/2", Author: "octocat",
				RepoOwner: "acme", RepoName: "widgets",
				Labels: []models.ArchiveLabel{{Name: "bug", Color: "d73a4a"}},
			},
			{
				ID: 2, RepositoryID: 1, Number: 1, Title: "First", State: "open",
				CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z",
				URL: "https://github.com/acme/widgets/issues/1", Author: "hubot",
				RepoOwner: "acme", RepoName: "widgets",
				Labels: []models.ArchiveLabel{{Name: "ui", Color: ""}},
			},
		},
		TotalIssues:  2,
		TotalRepos:   1,
		OpenIssues:   1,
		ClosedIssues: 1,
		GeneratedAt:  time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func extractIssues(t *testing.T, page string) []models.ArchiveIssue {
	t.Helper()
	const prefix = "var issues = "
	start := strings.Index(page, prefix)
	require.GreaterOrEqual(t, start, 0)
	rest := page[start+len(prefix):]
	end := strings.Index(rest, ";</script>")
	require.GreaterOrEqual(t, end, 0)

	var issues []models.ArchiveIssue
	require.NoError(t, json.Unmarshal([]byte(rest[:end]), &issues))
	return issues
}

func TestRender_FixedSnapshot(t *testing.T) {
	dir := writeTemplates(t, testMarkup, "body { color: red; }", "console.log(issues.length);")
	output := filepath.Join(t.TempDir(), "site", "archive", "index.html")
	renderer := NewRenderer(dir, output, testLogger())

	path, err := renderer.Render(fixedSnapshot())
	require.NoError(t, err)
	assert.Equal(t, output, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)

	meta, err := ParseMetadata(page)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.TotalIssues)
	assert.Equal(t, 1, meta.OpenIssues)
	assert.Equal(t, 1, meta.ClosedIssues)
	assert.Equal(t, 1, meta.TotalRepos)
	assert.True(t, meta.GeneratedAt.Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))

	issues := extractIssues(t, page)
	require.Len(t, issues, 2)
	assert.Equal(t, "Closing </script> tags", issues[0].Title)
	assert.Equal(t, "widgets", issues[0].RepoName)
	assert.Equal(t, []models.ArchiveLabel{{Name: "ui", Color: ""}}, issues[1].Labels)

	assert.Contains(t, page, "<style>\nbody { color: red; }\n</style>")
	assert.Contains(t, page, "<script>\nconsole.log(issues.length);\n</script>")
	assert.NotContains(t, page, DataPlaceholder)
	assert.NotContains(t, page, StyleAnchor)
	assert.NotContains(t, page, ScriptAnchor)
	assert.NotContains(t, page, "Closing </script> tags")
	assert.Less(t, strings.Index(page, MetadataPrefix), strings.Index(page, HeadClose))
}

func TestRender_IsDeterministic(t *testing.T) {
	dir := writeTemplates(t, testMarkup, "p {}", "void 0;")
	output := filepath.Join(t.TempDir(), "index.html")
	renderer := NewRenderer(dir, output, testLogger())

	_, err := renderer.Render(fixedSnapshot())
	require.NoError(t, err)
	first, err := os.ReadFile(output)
	require.NoError(t, err)

	_, err = renderer.Render(fixedSnapshot())
	require.NoError(t, err)
	second, err := os.ReadFile(output)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestRender_EmptySnapshot(t *testing.T) {
	dir := writeTemplates(t, testMarkup, "p {}", "void 0;")
	output := filepath.Join(t.TempDir(), "index.html")

	_, err := NewRenderer(dir, output, testLogger()).Render(&models.ArchiveSnapshot{})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "var issues = [];")
}

func TestRender_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		style  string
		script string
	}{
		{
			name:   "missing data placeholder",
			markup: strings.Replace(testMarkup, DataPlaceholder, "[]", 1),
			style:  "p {}", script: "void 0;",
		},
		{
			name:   "repeated data placeholder",
			markup: strings.Replace(testMarkup, "<body>", "<body>"+DataPlaceholder, 1),
			style:  "p {}", script: "void 0;",
		},
		{
			name:   "missing script anchor",
			markup: strings.Replace(testMarkup, ScriptAnchor, "", 1),
			style:  "p {}", script: "void 0;",
		},
		{
			name:   "repeated stylesheet anchor",
			markup: strings.Replace(testMarkup, "</body>", StyleAnchor+"</body>", 1),
			style:  "p {}", script: "void 0;",
		},
		{
			name:   "missing head",
			markup: strings.Replace(testMarkup, HeadClose, "", 1),
			style:  "p {}", script: "void 0;",
		},
		{
			name:   "script contains placeholder",
			markup: testMarkup,
			style:  "p {}", script: "var x = '" + DataPlaceholder + "';",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeTemplates(t, tt.markup, tt.style, tt.script)
			output := filepath.Join(t.TempDir(), "index.html")

			_, err := NewRenderer(dir, output, testLogger()).Render(fixedSnapshot())
			require.Error(t, err)
			assert.True(t, apperrors.IsRenderPrecondition(err))

			_, statErr := os.Stat(output)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestRender_OutputFailures(t *testing.T) {
	dir := writeTemplates(t, testMarkup, "p {}", "void 0;")

	t.Run("output directory blocked by a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "site")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		_, err := NewRenderer(dir, filepath.Join(blocker, "index.html"), testLogger()).Render(fixedSnapshot())
		require.Error(t, err)
		assert.True(t, apperrors.IsRenderOutput(err))
	})

	t.Run("output path is a directory", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "index.html")
		require.NoError(t, os.MkdirAll(output, 0755))

		_, err := NewRenderer(dir, output, testLogger()).Render(fixedSnapshot())
		require.Error(t, err)
		assert.True(t, apperrors.IsRenderOutput(err))
	})
}

func TestCheckPreconditions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "issues.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite"), 0644))
	output := filepath.Join(t.TempDir(), "index.html")

	t.Run("all inputs present", func(t *testing.T) {
		dir := writeTemplates(t, testMarkup, "p {}", "void 0;")
		assert.NoError(t, NewRenderer(dir, output, testLogger()).CheckPreconditions(dbPath))
	})

	t.Run("missing database", func(t *testing.T) {
		dir := writeTemplates(t, testMarkup, "p {}", "void 0;")
		err := NewRenderer(dir, output, testLogger()).CheckPreconditions(filepath.Join(t.TempDir(), "none.db"))
		assert.True(t, apperrors.IsRenderPrecondition(err))
	})

	t.Run("missing template directory", func(t *testing.T) {
		err := NewRenderer(filepath.Join(t.TempDir(), "nope"), output, testLogger()).CheckPreconditions(dbPath)
		assert.True(t, apperrors.IsRenderPrecondition(err))
	})

	t.Run("missing asset", func(t *testing.T) {
		dir := writeTemplates(t, testMarkup, "p {}", "void 0;")
		require.NoError(t, os.Remove(filepath.Join(dir, ScriptAsset)))
		err := NewRenderer(dir, output, testLogger()).CheckPreconditions(dbPath)
		assert.True(t, apperrors.IsRenderPrecondition(err))
	})

	t.Run("empty asset", func(t *testing.T) {
		dir := writeTemplates(t, testMarkup, "", "void 0;")
		err := NewRenderer(dir, output, testLogger()).CheckPreconditions(dbPath)
		assert.True(t, apperrors.IsRenderPrecondition(err))
	})
}

func TestWriteDefaultAssets(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")

	written, err := WriteDefaultAssets(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, Assets, written)

	custom := []byte("/* mine */")
	require.NoError(t, os.WriteFile(filepath.Join(dir, StyleAsset), custom, 0644))
	written, err = WriteDefaultAssets(dir)
	require.NoError(t, err)
	assert.Empty(t, written)

	data, err := os.ReadFile(filepath.Join(dir, StyleAsset))
	require.NoError(t, err)
	assert.Equal(t, custom, data)
}

func TestRender_DefaultAssets(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")
	_, err := WriteDefaultAssets(dir)
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "index.html")
	_, err = NewRenderer(dir, output, testLogger()).Render(fixedSnapshot())
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	page := string(data)
	assert.NotContains(t, page, DataPlaceholder)
	assert.Contains(t, page, "const issues = [")

	meta, err := ParseMetadata(page)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.TotalIssues)
}
