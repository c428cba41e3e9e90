package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// GraphQLClient represents a client for the GitHub GraphQL API
type GraphQLClient struct {
	client *githubv4.Client
	logger *logrus.Logger
}

// NewGraphQLClient creates a new GraphQL client. An empty endpoint selects
// the public api.github.com endpoint.
func NewGraphQLClient(token, endpoint string, logger *logrus.Logger) *GraphQLClient {
	var httpClient *http.Client
	if token != "" {
		src := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), src)
	}

	client := githubv4.NewClient(httpClient)
	if endpoint != "" {
		client = githubv4.NewEnterpriseClient(endpoint, httpClient)
	}
	return &GraphQLClient{client: client, logger: logger}
}

// AccessInfo describes the identity behind a token and its remaining quota
type AccessInfo struct {
	Login     string
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// CheckAccess resolves the authenticated user and the current rate limit
func (c *GraphQLClient) CheckAccess(ctx context.Context) (*AccessInfo, error) {
	var query struct {
		Viewer struct {
			Login githubv4.String
		}
		RateLimit struct {
			Limit     githubv4.Int
			Remaining githubv4.Int
			ResetAt   githubv4.DateTime
		}
	}

	if err := c.client.Query(ctx, &query, nil); err != nil {
		return nil, fmt.Errorf("failed to query viewer: %w", err)
	}

	info := &AccessInfo{
		Login:     string(query.Viewer.Login),
		Limit:     int(query.RateLimit.Limit),
		Remaining: int(query.RateLimit.Remaining),
		ResetAt:   query.RateLimit.ResetAt.Time,
	}

	if info.Remaining < 1000 {
		c.logger.WithFields(logrus.Fields{
			"remaining": info.Remaining,
			"limit":     info.Limit,
			"reset_at":  info.ResetAt.Format(time.RFC3339),
		}).Warn("GitHub rate limit is running low")
	}

	return info, nil
}
