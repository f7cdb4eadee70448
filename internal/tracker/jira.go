package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/pkg/types"
)

const defaultJiraBaseURL = "https://issues.apache.org/jira"

const jiraPageSize = 100

// Jira fetches bug reports from a Jira instance anonymously. Public Jira
// search endpoints do not require authentication for read access.
type Jira struct {
	client  *jira.Client
	baseURL string
	project types.Project
	logger  *zap.Logger
}

// NewJira creates a Jira tracker against the project's base URL, defaulting
// to the Apache instance the mined corpora live on.
func NewJira(project types.Project, logger *zap.Logger) (*Jira, error) {
	baseURL := project.TrackerBaseURL
	if baseURL == "" {
		baseURL = defaultJiraBaseURL
	}

	client, err := jira.NewClient(nil, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &Jira{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		project: project,
		logger:  logger,
	}, nil
}

// ListIssues pages through all bugs of the tracker project, newest key first.
func (j *Jira) ListIssues(ctx context.Context) ([]types.Issue, error) {
	jql := fmt.Sprintf("project = %q AND issuetype = Bug ORDER BY key DESC", j.project.TrackerProjectID)

	var issues []types.Issue
	start := 0
	for {
		chunk, resp, err := j.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
			StartAt:    start,
			MaxResults: jiraPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search jira issues: %w", err)
		}
		for i := range chunk {
			issues = append(issues, j.convert(&chunk[i]))
		}
		start += len(chunk)
		if len(chunk) == 0 || start >= resp.Total {
			break
		}
	}

	j.logger.Info("fetched jira issues",
		zap.String("project_id", j.project.ID),
		zap.String("tracker_project", j.project.TrackerProjectID),
		zap.Int("count", len(issues)),
	)
	return issues, nil
}

// GetIssue fetches one issue, including its comments.
func (j *Jira) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, _, err := j.client.Issue.GetWithContext(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get jira issue %s: %w", id, err)
	}
	converted := j.convert(issue)
	return &converted, nil
}

func (j *Jira) convert(issue *jira.Issue) types.Issue {
	out := types.Issue{
		ID:  issue.Key,
		URL: fmt.Sprintf("%s/browse/%s", j.baseURL, issue.Key),
	}
	if issue.Fields == nil {
		return out
	}
	out.Title = issue.Fields.Summary
	out.Description = issue.Fields.Description
	out.CreatedAt = time.Time(issue.Fields.Created)
	if issue.Fields.Status != nil {
		out.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Comments != nil {
		for _, c := range issue.Fields.Comments.Comments {
			if c != nil && c.Body != "" {
				out.Comments = append(out.Comments, c.Body)
			}
		}
	}
	return out
}
