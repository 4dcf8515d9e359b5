package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DigestRunResult is what one digest run produced. Warnings carry
// per-section fetch failures that degraded to empty sections.
type DigestRunResult struct {
	Title    string
	Due      string
	Report   string
	CardID   string
	Warnings []string
}

// RunDigest executes one full digest pass: compute the window, fetch
// the three feeds, classify board activity, compose (and optionally
// LLM-summarize) the report, then publish it. When dryRun is set the
// run stops before any side effects. Feed failures degrade to empty sections; only Trello
// credential/board problems on the activity feed abort the run.
func RunDigest(cfg Config, dryRun bool) (DigestRunResult, error) {
	if err := cfg.Validate(); err != nil {
		return DigestRunResult{}, err
	}

	runID := uuid.NewString()[:8]
	w := DigestWindow(time.Now(), cfg.Location, cfg.AnchorHour)
	log.Printf("digest run=%s window=%s..%s", runID, w.SinceISO(), w.UntilISO())

	var result DigestRunResult
	warn := func(section string, err error) {
		log.Printf("digest run=%s %s error: %v", runID, section, err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", section, err))
	}

	tc := NewTrelloClient(cfg)
	in := DigestInput{Window: w}

	if cfg.GitHubConfigured() {
		gh := NewGitHubClient(cfg)
		var groups []CommitGroup
		var err error
		if cfg.GitHubOrg != "" {
			groups, err = gh.FetchOrgCommits(cfg.GitHubOrg, w, cfg.GitHubRepos)
		} else {
			groups, err = gh.FetchRepoCommits(cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch, w)
		}
		if err != nil {
			warn("github", err)
		} else {
			in.Commits = groups
		}
	}

	// A missing notes list degrades to an empty section; the digest
	// still covers commits and board activity.
	notes, err := tc.FetchMeetingNotes(cfg.BoardName, cfg.NotesListName, w)
	if err != nil {
		warn("notes", err)
	} else {
		in.Notes = notes
	}

	board, err := tc.FindBoard(cfg.BoardName)
	if err != nil {
		return result, fmt.Errorf("resolving board: %w", err)
	}
	events, err := tc.BoardActions(board.ID, w, "all")
	if err != nil {
		return result, fmt.Errorf("fetching board actions: %w", err)
	}
	fetcher, err := tc.MetaFetcher(board.ID)
	if err != nil {
		warn("card metadata", err)
		fetcher = nil
	}
	in.Activity = ClassifyActivity(events, AliasConfig{
		InProgress: aliasSlice(cfg.InProgressList),
		Completed:  aliasSlice(cfg.CompletedList),
	}, fetcher)

	report := ComposeDigest(in)
	if cfg.LLMConfigured() {
		summary, err := SummarizeDigest(cfg, in)
		if err != nil {
			warn("llm", err)
		} else {
			report = summary
		}
	}

	result.Title = CardTitle(w, cfg.Location)
	result.Due = CardDue(w, cfg.Location, cfg.DueHour)
	result.Report = report

	if dryRun {
		return result, nil
	}

	reportPath, err := WriteReportFile(report, cfg.ReportOutputDir, w.Until)
	if err != nil {
		warn("report file", err)
		reportPath = ""
	}
	cardID, err := PublishDigest(cfg, tc, result.Title, report, result.Due, reportPath)
	if err != nil {
		return result, err
	}
	result.CardID = cardID
	log.Printf("digest run=%s published card=%s warnings=%d", runID, cardID, len(result.Warnings))
	return result, nil
}

func aliasSlice(name string) []string {
	if name == "" {
		return nil
	}
	return []string{name}
}
