package db

import (
	"context"
	"database/sql"

	"github.com/wesm/github-issue-archive/internal/apperrors"
	"github.com/wesm/github-issue-archive/internal/models"
)

// IssueRow is an issue joined with the owner and name of its repository
type IssueRow struct {
	models.Issue
	RepoOwner string
	RepoName  string
}

// ListRepositories returns every repository ordered by id
func (db *DB) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, owner, name FROM repositories ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query repositories", err)
	}
	defer rows.Close()

	var repos []models.Repository
	for rows.Next() {
		var repo models.Repository
		if err := rows.Scan(&repo.ID, &repo.Owner, &repo.Name); err != nil {
			return nil, apperrors.NewStorageError("failed to scan repository row", err)
		}
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("error iterating repository rows", err)
	}

	return repos, nil
}

// ListIssues returns every issue with its repository, most recently updated first
func (db *DB) ListIssues(ctx context.Context) ([]IssueRow, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT i.id, i.repository_id, i.number, i.title, i.body, i.state,
		i.created_at, i.updated_at, i.url, i.author, r.owner, r.name
	FROM issues i
	JOIN repositories r ON i.repository_id = r.id
	ORDER BY i.updated_at DESC, i.id ASC
	`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query issues", err)
	}
	defer rows.Close()

	var issues []IssueRow
	for rows.Next() {
		var row IssueRow
		var body sql.NullString
		err := rows.Scan(
			&row.ID,
			&row.RepositoryID,
			&row.Number,
			&row.Title,
			&body,
			&row.State,
			&row.CreatedAt,
			&row.UpdatedAt,
			&row.URL,
			&row.Author,
			&row.RepoOwner,
			&row.RepoName,
		)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to scan issue row", err)
		}
		row.Body = body.String
		issues = append(issues, row)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("error iterating issue rows", err)
	}

	return issues, nil
}

// ListLabels returns every label in insertion order
func (db *DB) ListLabels(ctx context.Context) ([]models.Label, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, issue_id, name, color FROM labels ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query labels", err)
	}
	defer rows.Close()

	var labels []models.Label
	for rows.Next() {
		var label models.Label
		if err := rows.Scan(&label.ID, &label.IssueID, &label.Name, &label.Color); err != nil {
			return nil, apperrors.NewStorageError("failed to scan label row", err)
		}
		labels = append(labels, label)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("error iterating label rows", err)
	}

	return labels, nil
}

// GetIssue gets an issue by its natural key. It returns nil if absent.
func (db *DB) GetIssue(ctx context.Context, repoID int64, number int) (*models.Issue, error) {
	var issue models.Issue
	var body sql.NullString
	err := db.QueryRowContext(ctx, `
	SELECT id, repository_id, number, title, body, state, created_at, updated_at, url, author
	FROM issues WHERE repository_id = ? AND number = ?
	`, repoID, number).Scan(
		&issue.ID,
		&issue.RepositoryID,
		&issue.Number,
		&issue.Title,
		&body,
		&issue.State,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.URL,
		&issue.Author,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewStorageError("failed to get issue", err)
	}
	issue.Body = body.String

	return &issue, nil
}

// CountIssues returns the number of stored issues
func (db *DB) CountIssues(ctx context.Context) (int, error) {
	return db.count(ctx, "issues")
}

// CountLabels returns the number of stored labels
func (db *DB) CountLabels(ctx context.Context) (int, error) {
	return db.count(ctx, "labels")
}

// CountRepositories returns the number of stored repositories
func (db *DB) CountRepositories(ctx context.Context) (int, error) {
	return db.count(ctx, "repositories")
}

// table is never caller input
func (db *DB) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, apperrors.NewStorageError("failed to count "+table, err)
	}
	return n, nil
}
