package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/wesm/github-issue-archive/internal/models"
)

// DefaultPageSize is the number of issues requested per page
const DefaultPageSize = 100

// GitHubClient lists repository issues through the GitHub REST API
type GitHubClient struct {
	client   *github.Client
	logger   *logrus.Logger
	pageSize int
}

// ClientOption allows configuring the GitHub client
type ClientOption func(*GitHubClient)

// WithBaseURL points the client at a different API root, such as a
// GitHub Enterprise server or a test server. Invalid URLs are ignored.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *GitHubClient) {
		if baseURL == "" {
			return
		}
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			c.logger.WithError(err).Warnf("Ignoring invalid API base URL %q", baseURL)
			return
		}
		c.client.BaseURL = u
	}
}

// WithPageSize overrides the per_page value sent with every request
func WithPageSize(size int) ClientOption {
	return func(c *GitHubClient) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// NewGitHubClient creates a new GitHub API client
func NewGitHubClient(token string, logger *logrus.Logger, opts ...ClientOption) *GitHubClient {
	var tc *http.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc = oauth2.NewClient(context.Background(), ts)
	}

	c := &GitHubClient{
		client:   github.NewClient(tc),
		logger:   logger,
		pageSize: DefaultPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchAll lists every issue and pull request of a repository, one page at
// a time starting at page 1, until a page comes back empty.
//
// If a request fails the issues gathered so far are returned together with
// a *FetchError. There is no retry.
func (c *GitHubClient) FetchAll(ctx context.Context, owner, name string) ([]*github.Issue, error) {
	logger := c.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  name,
	})

	var allIssues []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State: "all",
		ListOptions: github.ListOptions{
			Page:    1,
			PerPage: c.pageSize,
		},
	}

	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			statusCode := 0
			if resp != nil {
				statusCode = resp.StatusCode
			}
			logger.WithError(err).WithFields(logrus.Fields{
				"page":   opts.Page,
				"status": statusCode,
				"kept":   len(allIssues),
			}).Warn("Stopping pagination after failed request")
			return allIssues, NewFetchError(owner, name, opts.Page, statusCode, err)
		}

		if len(issues) == 0 {
			break
		}

		allIssues = append(allIssues, issues...)
		logger.WithFields(logrus.Fields{
			"page":  opts.Page,
			"count": len(issues),
		}).Debug("Fetched issues page")

		opts.Page++
	}

	logger.WithField("count", len(allIssues)).Info("Fetched all issues")
	return allIssues, nil
}

// ConvertGitHubIssue converts a GitHub issue to our model.
// Timestamps are kept as RFC 3339 strings in UTC.
func ConvertGitHubIssue(issue *github.Issue) *models.Issue {
	return &models.Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		CreatedAt: formatTimestamp(issue.CreatedAt),
		UpdatedAt: formatTimestamp(issue.UpdatedAt),
		URL:       issue.GetHTMLURL(),
		Author:    issue.GetUser().GetLogin(),
	}
}

// ConvertGitHubLabels converts the labels of a GitHub issue to our model
func ConvertGitHubLabels(issue *github.Issue) []models.Label {
	labels := make([]models.Label, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		if label == nil {
			continue
		}
		labels = append(labels, models.Label{
			Name:  label.GetName(),
			Color: label.GetColor(),
		})
	}
	return labels
}

func formatTimestamp(ts *github.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
