package models

import (
	"fmt"
	"time"
)

// IssueStateOpen is the upstream state string counted as open
const IssueStateOpen = "open"

// Repository represents a mirrored GitHub repository
type Repository struct {
	ID    int64  `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns the repository in owner/name form
func (r Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// Issue represents a GitHub issue as stored locally.
// CreatedAt and UpdatedAt hold RFC 3339 strings exactly as written.
type Issue struct {
	ID           int64
	RepositoryID int64
	Number       int
	Title        string
	Body         string
	State        string
	CreatedAt    string
	UpdatedAt    string
	URL          string
	Author       string
}

// Label represents a label attached to a single issue
type Label struct {
	ID      int64
	IssueID int64
	Name    string
	Color   string
}

// ArchiveLabel is the label shape embedded in the rendered page
type ArchiveLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ArchiveIssue is an issue joined with its repository and labels
type ArchiveIssue struct {
	ID           int64          `json:"id"`
	RepositoryID int64          `json:"repo_id"`
	Number       int            `json:"number"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	State        string         `json:"state"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	URL          string         `json:"url"`
	Author       string         `json:"author"`
	RepoOwner    string         `json:"repo_owner"`
	RepoName     string         `json:"repo_name"`
	Labels       []ArchiveLabel `json:"labels"`
}

// ArchiveSnapshot holds everything needed to render the archive page
type ArchiveSnapshot struct {
	Repos        []Repository   `json:"repos"`
	Issues       []ArchiveIssue `json:"issues"`
	TotalIssues  int            `json:"total_issues"`
	TotalRepos   int            `json:"total_repos"`
	OpenIssues   int            `json:"open_issues"`
	ClosedIssues int            `json:"closed_issues"`
	GeneratedAt  time.Time      `json:"generated_at"`
}
