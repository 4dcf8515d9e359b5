package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	githubAPIBase  = "https://api.github.com"
	commitsPerPage = 100
	// Hard ceilings so pagination terminates even against a malformed
	// upstream that never returns a short page.
	maxCommitPages = 10
	maxOrgRepos    = 50
)

type GitHubClient struct {
	Token   string
	BaseURL string
	HTTP    *http.Client
}

func NewGitHubClient(cfg Config) *GitHubClient {
	return &GitHubClient{
		Token:   cfg.GitHubToken,
		BaseURL: githubAPIBase,
		HTTP:    externalHTTPClient,
	}
}

type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

type githubRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	PushedAt      string `json:"pushed_at"`
}

func (c *GitHubClient) getJSON(apiURL string, out any) error {
	req, err := http.NewRequest("GET", apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &UpstreamHTTPError{Service: "GitHub", Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// ListCommits pages through a branch's commits within the window and
// returns them normalized, newest page first as upstream delivers.
func (c *GitHubClient) ListCommits(owner, repo, branch string, w Window) ([]Commit, error) {
	var all []Commit
	for page := 1; page < maxCommitPages; page++ {
		apiURL := fmt.Sprintf("%s/repos/%s/%s/commits?sha=%s&since=%s&until=%s&per_page=%d&page=%d",
			c.BaseURL, owner, repo, url.QueryEscape(branch),
			url.QueryEscape(w.SinceISO()), url.QueryEscape(w.UntilISO()),
			commitsPerPage, page)

		var batch []githubCommit
		if err := c.getJSON(apiURL, &batch); err != nil {
			return nil, err
		}
		for _, raw := range batch {
			all = append(all, normalizeCommit(raw))
		}
		if len(batch) < commitsPerPage {
			break
		}
	}
	return all, nil
}

func normalizeCommit(raw githubCommit) Commit {
	author := raw.Commit.Author.Name
	if author == "" && raw.Author != nil {
		author = raw.Author.Login
	}
	return Commit{
		SHA:     raw.SHA,
		URL:     raw.HTMLURL,
		Message: raw.Commit.Message,
		Author:  author,
		Date:    canonicalUTC(raw.Commit.Author.Date),
	}
}

// canonicalUTC reduces a timestamp string to Zulu ISO form with a
// tolerant two-attempt parse. Unparseable input comes back unchanged.
func canonicalUTC(s string) string {
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	if t, err := time.Parse("2006-01-02T15:04:05-0700", s); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return s
}

// ListOrgRepos pages through an organization's repositories, most
// recently updated first, optionally filtered by name, up to the repo
// cap.
func (c *GitHubClient) ListOrgRepos(org string, nameFilter []string) ([]githubRepo, error) {
	filter := make(map[string]bool, len(nameFilter))
	for _, name := range nameFilter {
		if n := strings.ToLower(strings.TrimSpace(name)); n != "" {
			filter[n] = true
		}
	}

	var repos []githubRepo
	var selected []githubRepo
	for page := 1; len(repos) < maxOrgRepos && page < maxCommitPages; page++ {
		apiURL := fmt.Sprintf("%s/orgs/%s/repos?per_page=%d&page=%d&type=all&sort=updated",
			c.BaseURL, org, commitsPerPage, page)

		var batch []githubRepo
		if err := c.getJSON(apiURL, &batch); err != nil {
			return nil, err
		}
		repos = append(repos, batch...)
		if len(batch) < commitsPerPage {
			break
		}
	}

	for _, r := range repos {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		if len(filter) > 0 && !filter[strings.ToLower(name)] {
			continue
		}
		if r.DefaultBranch == "" {
			r.DefaultBranch = "main"
		}
		selected = append(selected, r)
		if len(selected) >= maxOrgRepos {
			break
		}
	}
	return selected, nil
}

// FetchOrgCommits fetches windowed commits for every selected repo in
// the organization. A failing repo is logged and skipped, never fatal
// for the whole fetch; repos without commits are omitted.
func (c *GitHubClient) FetchOrgCommits(org string, w Window, nameFilter []string) ([]CommitGroup, error) {
	repos, err := c.ListOrgRepos(org, nameFilter)
	if err != nil {
		return nil, fmt.Errorf("listing org repos: %w", err)
	}
	log.Printf("github fetch org=%s repos=%d", org, len(repos))

	var groups []CommitGroup
	for _, repo := range repos {
		commits, err := c.ListCommits(org, repo.Name, repo.DefaultBranch, w)
		if err != nil {
			log.Printf("github fetch commits failed repo=%s: %v", repo.Name, err)
			continue
		}
		if len(commits) == 0 {
			continue
		}
		groups = append(groups, CommitGroup{
			Repo:    repo.Name,
			URL:     repo.HTMLURL,
			Branch:  repo.DefaultBranch,
			Commits: commits,
		})
	}
	return groups, nil
}

// FetchRepoCommits is the single-repository mode: one group for the
// named repo and branch.
func (c *GitHubClient) FetchRepoCommits(owner, repo, branch string, w Window) ([]CommitGroup, error) {
	commits, err := c.ListCommits(owner, repo, branch, w)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}
	return []CommitGroup{{
		Repo:    repo,
		URL:     fmt.Sprintf("https://github.com/%s/%s", owner, repo),
		Branch:  branch,
		Commits: commits,
	}}, nil
}
