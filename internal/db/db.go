package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/wesm/github-issue-archive/internal/apperrors"
	"github.com/wesm/github-issue-archive/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB represents the database connection
type DB struct {
	*sql.DB
	path   string
	logger *logrus.Logger
}

// New opens the SQLite database at dbPath, creating its parent directory
// if needed. Foreign keys are enforced on every connection.
func New(dbPath string, logger *logrus.Logger) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewStorageError("failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open database", err)
	}
	// One process, one writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to ping database", err)
	}

	return &DB{DB: db, path: dbPath, logger: logger}, nil
}

// schemaTables must all exist before the store can be read
var schemaTables = []string{"repositories", "issues", "labels"}

// OpenReadOnly opens an existing database without write access and checks
// that the schema is in place. Nothing is created or migrated.
func OpenReadOnly(ctx context.Context, dbPath string, logger *logrus.Logger) (*DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("database %s not found", dbPath), err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open database", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to ping database", err)
	}

	for _, table := range schemaTables {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&n)
		if err != nil {
			db.Close()
			return nil, apperrors.NewStorageError("failed to inspect schema", err)
		}
		if n == 0 {
			db.Close()
			return nil, apperrors.NewStorageError(
				fmt.Sprintf("database %s has no %s table, run sync first", dbPath, table), nil)
		}
	}

	return &DB{DB: db, path: dbPath, logger: logger}, nil
}

// Path returns the location of the database file
func (db *DB) Path() string {
	return db.path
}

// Initialize creates the schema if it doesn't exist
func (db *DB) Initialize(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if db.logger != nil {
		goose.SetLogger(db.logger)
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return apperrors.NewStorageError("failed to select migration dialect", err)
	}

	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return apperrors.NewStorageError("failed to create schema", err)
	}

	return nil
}

// UpsertRepository inserts the repository if it is new and returns its id
func (db *DB) UpsertRepository(ctx context.Context, owner, name string) (int64, error) {
	_, err := db.ExecContext(ctx, `
	INSERT INTO repositories (owner, name)
	VALUES (?, ?)
	ON CONFLICT(owner, name) DO NOTHING
	`, owner, name)
	if err != nil {
		return 0, apperrors.NewStorageError(fmt.Sprintf("failed to save repository %s/%s", owner, name), err)
	}

	var id int64
	err = db.QueryRowContext(ctx,
		`SELECT id FROM repositories WHERE owner = ? AND name = ?`, owner, name,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError(fmt.Sprintf("failed to resolve repository %s/%s", owner, name), err)
	}

	return id, nil
}

// UpsertIssue inserts or fully replaces the issue keyed on
// (repository_id, number). The row id is preserved on update.
func (db *DB) UpsertIssue(ctx context.Context, repoID int64, issue *models.Issue) (int64, error) {
	return upsertIssue(ctx, db.DB, repoID, issue)
}

// ReplaceLabels deletes every label of the issue and inserts labels
func (db *DB) ReplaceLabels(ctx context.Context, issueID int64, labels []models.Label) error {
	return replaceLabels(ctx, db.DB, issueID, labels)
}

// SaveIssueWithLabels writes the issue row and its label set as one transaction
func (db *DB) SaveIssueWithLabels(ctx context.Context, repoID int64, issue *models.Issue, labels []models.Label) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	id, err := upsertIssue(ctx, tx, repoID, issue)
	if err != nil {
		return 0, err
	}

	if err := replaceLabels(ctx, tx, id, labels); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStorageError(fmt.Sprintf("failed to commit issue #%d", issue.Number), err)
	}

	return id, nil
}

func upsertIssue(ctx context.Context, q querier, repoID int64, issue *models.Issue) (int64, error) {
	query := `
	INSERT INTO issues (repository_id, number, title, body, state, created_at, updated_at, url, author)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(repository_id, number) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		state = excluded.state,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		url = excluded.url,
		author = excluded.author
	RETURNING id
	`

	var id int64
	err := q.QueryRowContext(ctx, query,
		repoID,
		issue.Number,
		issue.Title,
		issue.Body,
		issue.State,
		issue.CreatedAt,
		issue.UpdatedAt,
		issue.URL,
		issue.Author,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError(fmt.Sprintf("failed to save issue #%d", issue.Number), err)
	}

	return id, nil
}

func replaceLabels(ctx context.Context, q querier, issueID int64, labels []models.Label) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM labels WHERE issue_id = ?`, issueID); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to clear labels of issue %d", issueID), err)
	}

	for _, label := range labels {
		_, err := q.ExecContext(ctx,
			`INSERT INTO labels (issue_id, name, color) VALUES (?, ?, ?)`,
			issueID, label.Name, label.Color,
		)
		if err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to save label %s", label.Name), err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
