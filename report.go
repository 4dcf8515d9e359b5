package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// ComposeDigest renders the digest draft in a fixed section order:
// Transcripts Summary, GitHub Commits, Trello Activity. It is pure;
// all inputs were fetched beforehand.
func ComposeDigest(in DigestInput) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("# Daily Digest (WDWDY) – %s → %s", in.Window.SinceDate(), in.Window.UntilDate()))
	lines = append(lines, "")
	lines = append(lines, "## Transcripts Summary")
	lines = append(lines, formatTranscripts(in.Transcripts))
	lines = append(lines, "")
	lines = append(lines, "## GitHub Commits")
	lines = append(lines, formatCommitGroups(in.Commits))
	lines = append(lines, "")
	lines = append(lines, "## Trello Activity")
	lines = append(lines, "")
	lines = append(lines, "### Meeting Notes")
	lines = append(lines, formatNotes(in.Notes))
	lines = append(lines, "")
	lines = append(lines, "### Board Activity")
	lines = append(lines, formatActivity(in.Activity))
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func formatTranscripts(items []TranscriptEntry) string {
	if len(items) == 0 {
		return "- No transcripts uploaded."
	}
	var out []string
	for _, t := range items {
		head := "- " + t.Filename
		if t.DateGuess != "" {
			head += " (" + t.DateGuess + ")"
		}
		out = append(out, head+"\n"+clip(t.Text, 800))
	}
	return strings.Join(out, "\n\n")
}

func formatCommitGroups(groups []CommitGroup) string {
	if len(groups) == 0 {
		return "- No commits found in range."
	}
	var out []string
	for _, g := range groups {
		out = append(out, fmt.Sprintf("### %s (%s)", g.Repo, g.Branch))
		for _, c := range g.Commits {
			out = append(out, fmt.Sprintf("- %s %s: %s (%s)", c.Date, c.Author, firstLine(c.Message), c.URL))
		}
	}
	return strings.Join(out, "\n")
}

func formatNotes(cards []NoteCard) string {
	if len(cards) == 0 {
		return "- No Meeting Notes cards in range."
	}
	var out []string
	for _, c := range cards {
		var b strings.Builder
		fmt.Fprintf(&b, "- %s %s (%s)\n  Desc: %s", c.DateLastActivity, c.Name, c.URL, clip(c.Desc, 300))
		for _, cm := range c.Comments {
			fmt.Fprintf(&b, "\n  * %s %s: %s", cm.Date, cm.Member, clip(cm.Text, 160))
		}
		for _, a := range c.Attachments {
			fmt.Fprintf(&b, "\n  * [%s](%s)", a.Name, a.URL)
		}
		out = append(out, b.String())
	}
	return strings.Join(out, "\n\n")
}

func formatActivity(groups []ColumnGroup) string {
	if len(groups) == 0 {
		return "- No tracked board activity in range."
	}
	var out []string
	for _, g := range groups {
		out = append(out, fmt.Sprintf("#### %s", g.Column))
		for _, card := range g.Cards {
			out = append(out, "- "+cardHeading(card))
			for _, ev := range card.Events {
				out = append(out, "  * "+eventLine(ev))
			}
		}
	}
	return strings.Join(out, "\n")
}

func cardHeading(card CardGroup) string {
	head := card.Name
	if head == "" {
		head = card.CardID
	}
	if card.Meta.URL != "" {
		head = fmt.Sprintf("[%s](%s)", head, card.Meta.URL)
	}
	var tags []string
	for _, o := range card.Meta.Owners {
		if o.FullName != "" {
			tags = append(tags, o.FullName)
		}
	}
	for _, l := range card.Meta.Labels {
		if l.Name != "" {
			tags = append(tags, l.Name)
		}
	}
	if len(tags) > 0 {
		head += " — " + strings.Join(tags, ", ")
	}
	if card.Meta.Checklist.Total > 0 {
		head += fmt.Sprintf(" [%d/%d]", card.Meta.Checklist.Completed, card.Meta.Checklist.Total)
	}
	return head
}

func eventLine(ev ActivityEvent) string {
	ts := ""
	if !ev.OccurredAt.IsZero() {
		ts = ev.OccurredAt.UTC().Format(time.RFC3339) + " "
	}
	actor := ev.Actor
	if actor != "" {
		actor += " "
	}
	switch ev.Kind {
	case KindCardCreated:
		return fmt.Sprintf("%s%screated card in %s", ts, actor, entryListName(ev))
	case KindCardCopied:
		return fmt.Sprintf("%s%scopied card into %s", ts, actor, entryListName(ev))
	case KindCardMovedToBoard:
		return fmt.Sprintf("%s%smoved card onto board into %s", ts, actor, entryListName(ev))
	case KindCardMoved:
		if ev.ListBefore != "" && ev.ListAfter != "" {
			return fmt.Sprintf("%s%smoved card %s → %s", ts, actor, ev.ListBefore, ev.ListAfter)
		}
		return fmt.Sprintf("%s%smoved card into %s", ts, actor, entryListName(ev))
	case KindCommentAdded:
		return fmt.Sprintf("%s%scommented: %s", ts, actor, clip(ev.CommentText, 160))
	case KindChecklistItemState:
		return fmt.Sprintf("%s%scompleted checklist item: %s", ts, actor, ev.ChecklistItemName)
	case KindAttachmentAdded:
		if ev.Attachment != nil {
			return fmt.Sprintf("%s%sattached [%s](%s)", ts, actor, ev.Attachment.Name, ev.Attachment.URL)
		}
		return fmt.Sprintf("%s%sadded an attachment", ts, actor)
	}
	return fmt.Sprintf("%s%s%s", ts, actor, ev.Kind)
}

func firstLine(s string) string {
	return strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
}

// clip truncates to n characters, never splitting a multi-byte rune.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// WriteReportFile writes the digest markdown under the output dir,
// named by the window's end date.
func WriteReportFile(content, outputDir string, reportDate time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("digest_%s.md", reportDate.UTC().Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}
