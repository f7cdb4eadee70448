package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/clintrovert/bugminer/pkg/types"
)

const (
	githubPageSize   = 100
	githubMaxRetries = 3
	githubRetryDelay = 30 * time.Second
)

// defaultBugLabels select bug-ish issues when the project does not configure
// its own label set.
var defaultBugLabels = []string{"bug"}

// GitHub fetches bug reports through the GitHub issues API. Without a token
// requests run under anonymous rate limits and back off when throttled.
type GitHub struct {
	client     *github.Client
	owner      string
	repo       string
	labels     []string
	maxRetries int
	sleep      func(time.Duration)
	logger     *zap.Logger
}

// NewGitHub creates a GitHub tracker. The tracker project id must be
// "owner/repo". An empty token degrades to anonymous access.
func NewGitHub(project types.Project, token string, logger *zap.Logger) (*GitHub, error) {
	owner, repo, ok := strings.Cut(project.TrackerProjectID, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("github tracker project id %q must be owner/repo", project.TrackerProjectID)
	}

	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	if project.TrackerBaseURL != "" {
		base, err := url.Parse(strings.TrimRight(project.TrackerBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github base URL %q: %w", project.TrackerBaseURL, err)
		}
		client.BaseURL = base
	}

	return &GitHub{
		client:     client,
		owner:      owner,
		repo:       repo,
		labels:     defaultBugLabels,
		maxRetries: githubMaxRetries,
		sleep:      time.Sleep,
		logger:     logger,
	}, nil
}

// ListIssues pages through all bug-labeled issues in any state, excluding
// pull requests (the issues API returns both).
func (g *GitHub) ListIssues(ctx context.Context) ([]types.Issue, error) {
	var issues []types.Issue
	for _, label := range g.labels {
		opts := &github.IssueListByRepoOptions{
			State:       "all",
			Labels:      []string{label},
			ListOptions: github.ListOptions{PerPage: githubPageSize},
		}
		for {
			var (
				page []*github.Issue
				resp *github.Response
			)
			err := g.withBackoff(ctx, "list issues", func() error {
				var err error
				page, resp, err = g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
				return err
			})
			if err != nil {
				return nil, err
			}
			for _, issue := range page {
				if issue.IsPullRequest() {
					continue
				}
				issues = append(issues, convertGitHubIssue(issue, nil))
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}

	g.logger.Info("fetched github issues",
		zap.String("repo", g.owner+"/"+g.repo),
		zap.Strings("labels", g.labels),
		zap.Int("count", len(issues)),
	)
	return issues, nil
}

// GetIssue fetches one issue together with its comment thread.
func (g *GitHub) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	number, err := strconv.Atoi(strings.TrimPrefix(id, "#"))
	if err != nil {
		return nil, fmt.Errorf("github issue id %q is not a number: %w", id, err)
	}

	var issue *github.Issue
	err = g.withBackoff(ctx, "get issue", func() error {
		var err error
		issue, _, err = g.client.Issues.Get(ctx, g.owner, g.repo, number)
		return err
	})
	if err != nil {
		return nil, err
	}

	var comments []string
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: githubPageSize}}
	for {
		var (
			page []*github.IssueComment
			resp *github.Response
		)
		err := g.withBackoff(ctx, "list comments", func() error {
			var err error
			page, resp, err = g.client.Issues.ListComments(ctx, g.owner, g.repo, number, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, c := range page {
			if body := c.GetBody(); body != "" {
				comments = append(comments, body)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	converted := convertGitHubIssue(issue, comments)
	return &converted, nil
}

// withBackoff retries rate-limited calls a bounded number of times with a
// blocking sleep, honoring the server's retry-after hint when present.
func (g *GitHub) withBackoff(ctx context.Context, op string, fn func() error) error {
	delay := githubRetryDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRateLimited(err) || attempt >= g.maxRetries {
			return fmt.Errorf("github %s: %w", op, err)
		}
		wait := delay
		if after := retryAfter(err); after > 0 {
			wait = after
		}
		g.logger.Warn("github rate limited, backing off",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1),
		)
		g.sleep(wait)
		delay *= 2
	}
}

func isRateLimited(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == 403
}

func retryAfter(err error) time.Duration {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return *abuseErr.RetryAfter
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		if wait := time.Until(rateErr.Rate.Reset.Time); wait > 0 {
			return wait
		}
	}
	return 0
}

func convertGitHubIssue(issue *github.Issue, comments []string) types.Issue {
	out := types.Issue{
		ID:          strconv.Itoa(issue.GetNumber()),
		URL:         issue.GetHTMLURL(),
		Title:       issue.GetTitle(),
		Description: issue.GetBody(),
		Status:      issue.GetState(),
		Comments:    comments,
	}
	if created := issue.GetCreatedAt(); !created.IsZero() {
		out.CreatedAt = created.Time
	}
	return out
}
