package main

import "time"

// EventKind is the closed set of board activity types the digest cares
// about. Raw Trello action types are mapped to these at the fetch
// boundary; anything unrecognized becomes KindOther.
type EventKind string

const (
	KindCardMoved          EventKind = "card_moved"
	KindCardCreated        EventKind = "card_created"
	KindCardCopied         EventKind = "card_copied"
	KindCardMovedToBoard   EventKind = "card_moved_to_board"
	KindCommentAdded       EventKind = "comment_added"
	KindChecklistItemState EventKind = "checklist_item_state"
	KindAttachmentAdded    EventKind = "attachment_added"
	KindOther              EventKind = "other"
)

type ChecklistItemState string

const (
	ChecklistComplete   ChecklistItemState = "complete"
	ChecklistIncomplete ChecklistItemState = "incomplete"
	ChecklistOther      ChecklistItemState = "other"
)

type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// ActivityEvent is one normalized record from the board's audit log.
// Source order is preserved throughout the pipeline; it is NOT
// guaranteed chronological and is only used for tie-breaking.
type ActivityEvent struct {
	OccurredAt         time.Time          `json:"date"`
	Kind               EventKind          `json:"type"`
	Actor              string             `json:"member,omitempty"`
	CardID             string             `json:"cardId,omitempty"`
	CardName           string             `json:"card,omitempty"`
	ListBefore         string             `json:"listBefore,omitempty"`
	ListAfter          string             `json:"listAfter,omitempty"`
	CommentText        string             `json:"text,omitempty"`
	ChecklistItemName  string             `json:"checkItemName,omitempty"`
	ChecklistItemState ChecklistItemState `json:"checkItemState,omitempty"`
	Attachment         *Attachment        `json:"attachment,omitempty"`
}

// ColumnTarget is one of the two semantic buckets activity is
// classified into. The set is closed: anything else is dropped.
type ColumnTarget string

const (
	ColumnInProgress ColumnTarget = "In Progress"
	ColumnCompleted  ColumnTarget = "Completed"
)

type CardOwner struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

type CardLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type ChecklistProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// CardMeta is the enriched per-card metadata attached during
// classification when a fetcher is available.
type CardMeta struct {
	CardID    string            `json:"cardId"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	ListName  string            `json:"listName"`
	Owners    []CardOwner       `json:"owners"`
	Labels    []CardLabel       `json:"labels"`
	Checklist ChecklistProgress `json:"completion"`
}

// CardGroup is one card plus its qualifying events in encounter order.
type CardGroup struct {
	CardID string          `json:"cardId"`
	Name   string          `json:"name"`
	Meta   CardMeta        `json:"meta"`
	Events []ActivityEvent `json:"actions"`
}

type ColumnGroup struct {
	Column ColumnTarget `json:"column"`
	Cards  []CardGroup  `json:"cards"`
}

// Commit is one normalized source-repository commit. Date is a
// canonical UTC ISO string, or the raw upstream string when it could
// not be parsed.
type Commit struct {
	SHA     string `json:"sha"`
	URL     string `json:"url"`
	Message string `json:"message"`
	Author  string `json:"author"`
	Date    string `json:"date"`
}

type CommitGroup struct {
	Repo    string   `json:"repo"`
	URL     string   `json:"url"`
	Branch  string   `json:"branch"`
	Commits []Commit `json:"commits"`
}

type NoteComment struct {
	Text   string `json:"text"`
	Date   string `json:"date"`
	Member string `json:"member"`
}

// NoteCard is a meeting-note card that fell inside the reporting
// window, either by its title date tag or by last activity.
type NoteCard struct {
	CardID           string        `json:"cardId"`
	Name             string        `json:"name"`
	URL              string        `json:"url"`
	DateLastActivity string        `json:"dateLastActivity"`
	TitleDate        string        `json:"titleDate"`
	AddedDate        string        `json:"addedDate,omitempty"`
	Desc             string        `json:"desc"`
	Comments         []NoteComment `json:"comments,omitempty"`
	Attachments      []Attachment  `json:"attachments,omitempty"`
}

type TranscriptEntry struct {
	Filename  string `json:"filename"`
	DateGuess string `json:"dateGuess,omitempty"`
	Text      string `json:"text"`
}

// DigestInput is everything the composer needs for one run.
type DigestInput struct {
	Window      Window
	Transcripts []TranscriptEntry
	Commits     []CommitGroup
	Notes       []NoteCard
	Activity    []ColumnGroup
}
