package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestCanonicalUTC(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024-03-05T10:30:00Z", "2024-03-05T10:30:00Z"},
		{"2024-03-05T18:30:00+08:00", "2024-03-05T10:30:00Z"},
		{"2024-03-05T18:30:00+0800", "2024-03-05T10:30:00Z"},
		{"not-a-date", "not-a-date"},
		{"", ""},
	}
	for _, tt := range tests {
		got := canonicalUTC(tt.input)
		if got != tt.want {
			t.Errorf("canonicalUTC(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeCommitAuthorFallback(t *testing.T) {
	var structured githubCommit
	structured.SHA = "abc"
	structured.Commit.Message = "fix: thing\n\ndetails"
	structured.Commit.Author.Name = "Alice Example"
	structured.Commit.Author.Date = "2024-03-05T10:30:00Z"
	structured.Author = &struct {
		Login string `json:"login"`
	}{Login: "alice-gh"}

	got := normalizeCommit(structured)
	if got.Author != "Alice Example" {
		t.Fatalf("structured author name must win, got %q", got.Author)
	}

	structured.Commit.Author.Name = ""
	got = normalizeCommit(structured)
	if got.Author != "alice-gh" {
		t.Fatalf("expected login fallback, got %q", got.Author)
	}
}

func testWindow() Window {
	return Window{
		Since: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func commitPayload(n int) []map[string]any {
	var out []map[string]any
	for i := 0; i < n; i++ {
		out = append(out, map[string]any{
			"sha":      fmt.Sprintf("sha-%d", i),
			"html_url": fmt.Sprintf("https://github.com/o/r/commit/%d", i),
			"commit": map[string]any{
				"message": "work",
				"author":  map[string]any{"name": "Alice", "date": "2024-03-05T10:30:00Z"},
			},
		})
	}
	return out
}

func TestListCommitsStopsOnShortPage(t *testing.T) {
	var pagesServed []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pagesServed = append(pagesServed, page)
		if page == 1 {
			json.NewEncoder(w).Encode(commitPayload(commitsPerPage))
			return
		}
		json.NewEncoder(w).Encode(commitPayload(3))
	}))
	defer server.Close()

	client := &GitHubClient{Token: "tok", BaseURL: server.URL, HTTP: server.Client()}
	commits, err := client.ListCommits("o", "r", "main", testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commits) != commitsPerPage+3 {
		t.Fatalf("expected %d commits, got %d", commitsPerPage+3, len(commits))
	}
	if len(pagesServed) != 2 {
		t.Fatalf("short page must stop pagination, served pages: %v", pagesServed)
	}
}

func TestListCommitsHonoursPageCap(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// Never a short page: the hard cap must terminate the loop.
		json.NewEncoder(w).Encode(commitPayload(commitsPerPage))
	}))
	defer server.Close()

	client := &GitHubClient{BaseURL: server.URL, HTTP: server.Client()}
	if _, err := client.ListCommits("o", "r", "main", testWindow()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests >= maxCommitPages {
		t.Fatalf("pagination must stop below the page cap, made %d requests", requests)
	}
}

func TestListCommitsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer server.Close()

	client := &GitHubClient{BaseURL: server.URL, HTTP: server.Client()}
	_, err := client.ListCommits("o", "r", "main", testWindow())
	if err == nil {
		t.Fatal("expected error")
	}
	var up *UpstreamHTTPError
	if !errors.As(err, &up) || up.Status != http.StatusForbidden {
		t.Fatalf("expected UpstreamHTTPError with 403, got %v", err)
	}
}

func TestFetchOrgCommitsSkipsFailingRepo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/orgs/acme/repos":
			json.NewEncoder(w).Encode([]map[string]any{
				{"name": "good", "html_url": "https://github.com/acme/good", "default_branch": "main"},
				{"name": "broken", "html_url": "https://github.com/acme/broken", "default_branch": "main"},
				{"name": "empty", "html_url": "https://github.com/acme/empty", "default_branch": "main"},
			})
		case r.URL.Path == "/repos/acme/good/commits":
			json.NewEncoder(w).Encode(commitPayload(2))
		case r.URL.Path == "/repos/acme/broken/commits":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"Git Repository is empty."}`))
		case r.URL.Path == "/repos/acme/empty/commits":
			json.NewEncoder(w).Encode([]map[string]any{})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := &GitHubClient{BaseURL: server.URL, HTTP: server.Client()}
	groups, err := client.FetchOrgCommits("acme", testWindow(), nil)
	if err != nil {
		t.Fatalf("per-repo failures must not abort the fetch: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected only the repo with commits, got %+v", groups)
	}
	if groups[0].Repo != "good" || len(groups[0].Commits) != 2 {
		t.Fatalf("unexpected group: %+v", groups[0])
	}
}

func TestListOrgReposNameFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"name": "alpha", "default_branch": "main"},
			{"name": "Beta", "default_branch": ""},
			{"name": "gamma", "default_branch": "develop"},
		})
	}))
	defer server.Close()

	client := &GitHubClient{BaseURL: server.URL, HTTP: server.Client()}
	repos, err := client.ListOrgRepos("acme", []string{" beta ", "gamma"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected filter to select 2 repos, got %+v", repos)
	}
	if repos[0].Name != "Beta" || repos[0].DefaultBranch != "main" {
		t.Fatalf("missing default branch must fall back to main, got %+v", repos[0])
	}
}
