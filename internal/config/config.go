package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/clintrovert/bugminer/pkg/types"
)

// Credentials holds the two optional API credentials read at process start.
// Absence degrades functionality (anonymous rate limits, LLM features
// disabled) rather than failing the run.
type Credentials struct {
	GitHubToken string
	OpenAIKey   string
}

// CredentialsFromEnv reads credentials from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		GitHubToken: getEnv("GITHUB_TOKEN", os.Getenv("GH_TOKEN")),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
	}
}

// LoadProjects reads the tab-separated project list file and returns fully
// validated project descriptors. Blank lines and '#' comments are ignored.
// Columns: project_id, project_name, repository_url, tracker_name,
// tracker_project_id, fix_regex, optional sub_path, optional tracker_base_url.
// A malformed line is an error for that line's project only; it is reported
// and the remaining lines still load.
func LoadProjects(path string) ([]types.Project, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to open project list %s: %w", path, err)}
	}
	defer f.Close()

	var (
		projects []types.Project
		errs     []error
		seen     = map[string]bool{}
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		p, err := parseLine(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("line %d: duplicate project id %q", lineNo, p.ID))
			continue
		}
		seen[p.ID] = true
		projects = append(projects, p)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to read project list %s: %w", path, err))
	}
	return projects, errs
}

func parseLine(line string) (types.Project, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 6 {
		return types.Project{}, fmt.Errorf("expected at least 6 tab-separated columns, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	id, name, repoURL := parts[0], parts[1], parts[2]
	if id == "" || name == "" {
		return types.Project{}, fmt.Errorf("project id and name must not be empty")
	}

	if err := validateRepositoryURL(repoURL); err != nil {
		return types.Project{}, fmt.Errorf("project %s: %w", id, err)
	}

	tracker, err := types.ParseTrackerKind(parts[3])
	if err != nil {
		return types.Project{}, fmt.Errorf("project %s: %w", id, err)
	}

	fixRegex, err := regexp.Compile(parts[5])
	if err != nil {
		return types.Project{}, fmt.Errorf("project %s: invalid fix regex %q: %w", id, parts[5], err)
	}

	p := types.Project{
		ID:               id,
		Name:             name,
		RepositoryURL:    repoURL,
		Tracker:          tracker,
		TrackerProjectID: parts[4],
		FixRegex:         fixRegex,
	}
	if len(parts) > 6 && parts[6] != "" && parts[6] != "." {
		p.SubPath = parts[6]
	}
	if len(parts) > 7 && parts[7] != "" && parts[7] != "NA" {
		base, err := url.Parse(parts[7])
		if err != nil || base.Scheme == "" || base.Host == "" {
			return types.Project{}, fmt.Errorf("project %s: invalid tracker base URL %q", id, parts[7])
		}
		p.TrackerBaseURL = parts[7]
	}
	return p, nil
}

// validateRepositoryURL accepts http(s) and git URLs as well as local
// filesystem paths (local mirrors are valid clone sources).
func validateRepositoryURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("repository URL must not be empty")
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid repository URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "git", "ssh", "file":
		return nil
	default:
		return fmt.Errorf("unsupported repository URL scheme %q", u.Scheme)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
