package main

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	fullTitleDateRe = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	monthDayDateRe  = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})`)
)

// parseTitleDate extracts an explicit date tag from a card name.
// A full YYYY-MM-DD (or YYYY/MM/DD) tag wins; otherwise MM-DD uses the
// fallback year. Returns "" when no tag is present.
func parseTitleDate(name string, fallbackYear int) string {
	if m := fullTitleDateRe.FindStringSubmatch(name); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	}
	if m := monthDayDateRe.FindStringSubmatch(name); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%04d-%02d-%02d", fallbackYear, mo, d)
	}
	return ""
}

// noteInWindow decides window membership for a card: by title date tag
// when one exists (calendar dates, inclusive both ends), otherwise by
// last-activity timestamp (inclusive both ends). Cards with an
// unparseable activity timestamp and no tag are excluded.
func noteInWindow(card trelloCard, w Window) bool {
	titleDate := parseTitleDate(card.Name, w.Since.UTC().Year())
	if titleDate != "" {
		return w.SinceDate() <= titleDate && titleDate <= w.UntilDate()
	}
	act, err := time.Parse(time.RFC3339, card.DateLastActivity)
	if err != nil {
		return false
	}
	return !act.Before(w.Since) && !act.After(w.Until)
}

// FetchMeetingNotes returns the note cards of the named list that fall
// inside the window, enriched with window-bounded comments, all
// attachments, and the card's earliest create/copy date. Enrichment
// failures degrade to empty fields, never abort the fetch.
func (c *TrelloClient) FetchMeetingNotes(boardName, listName string, w Window) ([]NoteCard, error) {
	board, err := c.FindBoard(boardName)
	if err != nil {
		return nil, err
	}
	list, err := c.FindList(board.ID, listName)
	if err != nil {
		return nil, err
	}
	cards, err := c.ListCards(list.ID)
	if err != nil {
		return nil, err
	}

	fallbackYear := w.Since.UTC().Year()
	var notes []NoteCard
	for _, card := range cards {
		if !noteInWindow(card, w) {
			continue
		}
		note := NoteCard{
			CardID:           card.ID,
			Name:             card.Name,
			URL:              card.ShortURL,
			DateLastActivity: canonicalUTC(card.DateLastActivity),
			TitleDate:        parseTitleDate(card.Name, fallbackYear),
			Desc:             card.Desc,
		}
		note.Comments = c.cardComments(card.ID, w)
		note.Attachments = c.cardAttachments(card.ID)
		note.AddedDate = c.cardAddedDate(card.ID)
		notes = append(notes, note)
	}
	log.Printf("trello fetch notes board=%s list=%s matched=%d of %d", boardName, listName, len(notes), len(cards))
	return notes, nil
}

func (c *TrelloClient) cardComments(cardID string, w Window) []NoteComment {
	params := url.Values{}
	params.Set("filter", "commentCard")
	params.Set("limit", fmt.Sprintf("%d", trelloActionLimit))
	params.Set("since", w.SinceISO())
	params.Set("before", w.UntilISO())

	var actions []trelloAction
	if err := c.get("/cards/"+cardID+"/actions", params, &actions); err != nil {
		log.Printf("trello fetch comments failed card=%s: %v", cardID, err)
		return nil
	}
	comments := make([]NoteComment, 0, len(actions))
	for _, a := range actions {
		comments = append(comments, NoteComment{
			Text:   a.Data.Text,
			Date:   canonicalUTC(a.Date),
			Member: a.MemberCreator.FullName,
		})
	}
	return comments
}

func (c *TrelloClient) cardAttachments(cardID string) []Attachment {
	var raw []struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		DownloadURL string `json:"downloadUrl"`
		MimeType    string `json:"mimeType"`
	}
	if err := c.get("/cards/"+cardID+"/attachments", nil, &raw); err != nil {
		log.Printf("trello fetch attachments failed card=%s: %v", cardID, err)
		return nil
	}
	atts := make([]Attachment, 0, len(raw))
	for _, a := range raw {
		u := a.URL
		if u == "" {
			u = a.DownloadURL
		}
		atts = append(atts, Attachment{Name: a.Name, URL: u, MimeType: a.MimeType})
	}
	return atts
}

// cardAddedDate is the date of the earliest create/copy action on the
// card, or "" when no such action is visible.
func (c *TrelloClient) cardAddedDate(cardID string) string {
	params := url.Values{}
	params.Set("filter", "all")
	params.Set("limit", "100")

	var actions []trelloAction
	if err := c.get("/cards/"+cardID+"/actions", params, &actions); err != nil {
		log.Printf("trello fetch card actions failed card=%s: %v", cardID, err)
		return ""
	}
	var created []string
	for _, a := range actions {
		if a.Type == "createCard" || a.Type == "copyCard" {
			created = append(created, a.Date)
		}
	}
	if len(created) == 0 {
		return ""
	}
	sort.Strings(created)
	return canonicalUTC(created[0])
}
