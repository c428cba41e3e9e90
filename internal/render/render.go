// Package render writes the self-contained archive page.
//
// The page is produced by literal text substitution into index.html: the
// issue JSON replaces DataPlaceholder, the stylesheet and script bodies
// replace their anchors, and a metadata comment is inserted before </head>.
// Every token must appear exactly once.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesm/github-issue-archive/internal/apperrors"
	"github.com/wesm/github-issue-archive/internal/models"
)

const (
	IndexAsset  = "index.html"
	StyleAsset  = "style.css"
	ScriptAsset = "script.js"

	DataPlaceholder = "{{ISSUES_DATA}}"
	StyleAnchor     = `<link rel="stylesheet" href="style.css">`
	ScriptAnchor    = `<script src="script.js"></script>`
	HeadClose       = "</head>"

	// MetadataPrefix opens the comment carrying the snapshot summary
	MetadataPrefix = "<!-- issue-archive "
)

// Assets lists the template files required in the template directory
var Assets = []string{IndexAsset, StyleAsset, ScriptAsset}

// Metadata is the summary embedded in the page head
type Metadata struct {
	GeneratedAt  time.Time `json:"generated_at"`
	TotalIssues  int       `json:"total_issues"`
	TotalRepos   int       `json:"total_repos"`
	OpenIssues   int       `json:"open_issues"`
	ClosedIssues int       `json:"closed_issues"`
}

// Renderer writes the archive page from a snapshot and template assets
type Renderer struct {
	templateDir string
	outputPath  string
	logger      *logrus.Logger
}

// NewRenderer creates a new renderer
func NewRenderer(templateDir, outputPath string, logger *logrus.Logger) *Renderer {
	return &Renderer{
		templateDir: templateDir,
		outputPath:  outputPath,
		logger:      logger,
	}
}

// OutputPath returns where Render writes the page
func (r *Renderer) OutputPath() string {
	return r.outputPath
}

// CheckPreconditions verifies the database file, the template directory and
// every template asset exist before any rendering work starts.
func (r *Renderer) CheckPreconditions(dbPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return apperrors.NewRenderPreconditionError(fmt.Sprintf("database %s not found, run sync first", dbPath), err)
	}

	info, err := os.Stat(r.templateDir)
	if err != nil {
		return apperrors.NewRenderPreconditionError(fmt.Sprintf("template directory %s not found", r.templateDir), err)
	}
	if !info.IsDir() {
		return apperrors.NewRenderPreconditionError(fmt.Sprintf("template path %s is not a directory", r.templateDir), nil)
	}

	for _, name := range Assets {
		path := filepath.Join(r.templateDir, name)
		info, err := os.Stat(path)
		if err != nil {
			return apperrors.NewRenderPreconditionError(fmt.Sprintf("template asset %s not found", path), err)
		}
		if info.Size() == 0 {
			return apperrors.NewRenderPreconditionError(fmt.Sprintf("template asset %s is empty", path), nil)
		}
	}

	return nil
}

// Render substitutes the snapshot into the templates and writes the page,
// replacing any previous output. It returns the output path.
func (r *Renderer) Render(snapshot *models.ArchiveSnapshot) (string, error) {
	assets := make(map[string]string, len(Assets))
	for _, name := range Assets {
		data, err := os.ReadFile(filepath.Join(r.templateDir, name))
		if err != nil {
			return "", apperrors.NewRenderPreconditionError(fmt.Sprintf("failed to read template asset %s", name), err)
		}
		if len(data) == 0 {
			return "", apperrors.NewRenderPreconditionError(fmt.Sprintf("template asset %s is empty", name), nil)
		}
		assets[name] = string(data)
	}

	page, err := buildPage(assets[IndexAsset], assets[StyleAsset], assets[ScriptAsset], snapshot)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(r.outputPath), 0755); err != nil {
		return "", apperrors.NewRenderOutputError(fmt.Sprintf("failed to create output directory %s", filepath.Dir(r.outputPath)), err)
	}
	if err := os.WriteFile(r.outputPath, []byte(page), 0644); err != nil {
		return "", apperrors.NewRenderOutputError(fmt.Sprintf("failed to write %s", r.outputPath), err)
	}

	r.logger.WithFields(logrus.Fields{
		"path":   r.outputPath,
		"issues": snapshot.TotalIssues,
		"bytes":  len(page),
	}).Info("Wrote archive page")

	return r.outputPath, nil
}

func buildPage(markup, style, script string, snapshot *models.ArchiveSnapshot) (string, error) {
	tokens := []string{DataPlaceholder, StyleAnchor, ScriptAnchor, HeadClose}
	for _, token := range tokens {
		if n := strings.Count(markup, token); n != 1 {
			return "", apperrors.NewRenderPreconditionError(
				fmt.Sprintf("%s must contain %q exactly once, found %d", IndexAsset, token, n), nil)
		}
	}
	for name, body := range map[string]string{StyleAsset: style, ScriptAsset: script} {
		for _, token := range tokens {
			if strings.Contains(body, token) {
				return "", apperrors.NewRenderPreconditionError(
					fmt.Sprintf("%s must not contain %q", name, token), nil)
			}
		}
	}

	issues := snapshot.Issues
	if issues == nil {
		issues = []models.ArchiveIssue{}
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return "", fmt.Errorf("failed to encode issues: %w", err)
	}

	meta, err := json.Marshal(Metadata{
		GeneratedAt:  snapshot.GeneratedAt,
		TotalIssues:  snapshot.TotalIssues,
		TotalRepos:   snapshot.TotalRepos,
		OpenIssues:   snapshot.OpenIssues,
		ClosedIssues: snapshot.ClosedIssues,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	// One pass, so substituted text is never scanned for tokens again.
	replacer := strings.NewReplacer(
		DataPlaceholder, string(data),
		StyleAnchor, "<style>\n"+style+"\n</style>",
		ScriptAnchor, "<script>\n"+script+"\n</script>",
		HeadClose, MetadataPrefix+string(meta)+" -->\n"+HeadClose,
	)
	return replacer.Replace(markup), nil
}

// ParseMetadata extracts the summary comment from a rendered page
func ParseMetadata(page string) (*Metadata, error) {
	start := strings.Index(page, MetadataPrefix)
	if start < 0 {
		return nil, errors.New("metadata comment not found")
	}
	rest := page[start+len(MetadataPrefix):]
	end := strings.Index(rest, " -->")
	if end < 0 {
		return nil, errors.New("metadata comment is not terminated")
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &meta, nil
}
