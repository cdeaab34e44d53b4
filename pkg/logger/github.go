package logger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v60/github"

	"github.com/cgast/contr/pkg/state"
)

// GitHubIssues files an issue for every violation that produced a new
// sample, so a contract opens at most one issue per sampling period.
// Violations without a fresh sample are skipped.
type GitHubIssues struct {
	client  *gh.Client
	owner   string
	repo    string
	labels  []string
	timeout time.Duration
	log     *slog.Logger
}

// GitHubOption configures a GitHubIssues logger.
type GitHubOption func(*GitHubIssues)

// WithLabels sets the labels applied to filed issues.
func WithLabels(labels ...string) GitHubOption {
	return func(g *GitHubIssues) {
		g.labels = labels
	}
}

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(base string) GitHubOption {
	return func(g *GitHubIssues) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		if u, err := url.Parse(base); err == nil {
			g.client.BaseURL = u
		}
	}
}

// WithSlog sets where delivery failures are reported.
func WithSlog(l *slog.Logger) GitHubOption {
	return func(g *GitHubIssues) {
		g.log = l
	}
}

// NewGitHubIssues creates an issue logger for repo in owner/name form.
func NewGitHubIssues(token, repo string, opts ...GitHubOption) (*GitHubIssues, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repo must be in owner/name format, got %q", repo)
	}

	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
	}
	g := &GitHubIssues{
		client:  gh.NewClient(httpClient),
		owner:   owner,
		repo:    name,
		labels:  []string{DefaultTag},
		timeout: 10 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("component", "github-issues")
	return g, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

func (g *GitHubIssues) Log(ctx context.Context, s state.State) {
	if s.DumpInfo == nil {
		return
	}
	if _, err := g.File(ctx, s); err != nil {
		g.log.WarnContext(ctx, "file issue failed", "contract", s.ContractName, "id", s.ID, "error", err)
	}
}

// File opens an issue describing s and returns its number.
func (g *GitHubIssues) File(ctx context.Context, s state.State) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	title := fmt.Sprintf("Contract %s failed", s.ContractName)
	body := issueBody(s)
	req := &gh.IssueRequest{
		Title: &title,
		Body:  &body,
	}
	if len(g.labels) > 0 {
		labels := append([]string(nil), g.labels...)
		req.Labels = &labels
	}

	issue, _, err := g.client.Issues.Create(ctx, g.owner, g.repo, req)
	if err != nil {
		return 0, fmt.Errorf("github: create issue: %w", err)
	}
	return issue.GetNumber(), nil
}

func issueBody(s state.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contract `%s` was violated at %s", s.ContractName, s.TS)
	if s.Async {
		b.WriteString(" (async check)")
	}
	b.WriteString(".\n\n")

	b.WriteString("| rule | kind | status | error |\n|---|---|---|---|\n")
	for _, r := range s.FailedRules {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", r.Name, r.Kind, r.Status, r.Error)
	}

	fmt.Fprintf(&b, "\nargs: `%s`\nresult: `%s`\n", s.Args, s.Result)
	if s.DumpInfo != nil {
		fmt.Fprintf(&b, "\nsample: `%s`\n", s.DumpInfo.Path)
	}
	fmt.Fprintf(&b, "check id: `%s`\n", s.ID)
	return b.String()
}
