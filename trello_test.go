package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func testTrelloClient(h http.Handler) (*TrelloClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	client := &TrelloClient{Key: "k", Token: "t", BaseURL: srv.URL, HTTP: srv.Client()}
	return client, srv
}

func TestMapActionType(t *testing.T) {
	tests := []struct {
		in   string
		want EventKind
	}{
		{"updateCard", KindCardMoved},
		{"createCard", KindCardCreated},
		{"copyCard", KindCardCopied},
		{"moveCardToBoard", KindCardMovedToBoard},
		{"commentCard", KindCommentAdded},
		{"updateCheckItemStateOnCard", KindChecklistItemState},
		{"addAttachmentToCard", KindAttachmentAdded},
		{"deleteCard", KindOther},
		{"", KindOther},
	}
	for _, tt := range tests {
		if got := mapActionType(tt.in); got != tt.want {
			t.Errorf("mapActionType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeActionMove(t *testing.T) {
	var a trelloAction
	a.Type = "updateCard"
	a.Date = "2024-03-04T10:00:00.000Z"
	a.MemberCreator.FullName = "Alice"
	a.Data.Card.ID = "c1"
	a.Data.Card.Name = "Task"
	a.Data.ListBefore.Name = "Backlog"
	a.Data.ListAfter.Name = "In Progress"

	ev := normalizeAction(a)
	if ev.Kind != KindCardMoved {
		t.Errorf("kind = %q", ev.Kind)
	}
	if ev.ListBefore != "Backlog" || ev.ListAfter != "In Progress" {
		t.Errorf("lists = %q → %q", ev.ListBefore, ev.ListAfter)
	}
	if ev.Actor != "Alice" || ev.CardID != "c1" || ev.CardName != "Task" {
		t.Errorf("identity fields = %+v", ev)
	}
	if ev.OccurredAt.IsZero() {
		t.Error("date should parse")
	}
}

func TestNormalizeActionCreateUsesListField(t *testing.T) {
	var a trelloAction
	a.Type = "createCard"
	a.Data.Card.ID = "c1"
	a.Data.List.Name = "Doing"

	ev := normalizeAction(a)
	if entryListName(ev) != "Doing" {
		t.Errorf("entry list = %q, want %q", entryListName(ev), "Doing")
	}
}

func TestNormalizeActionChecklistAndAttachment(t *testing.T) {
	var a trelloAction
	a.Type = "updateCheckItemStateOnCard"
	a.Data.Card.ID = "c1"
	a.Data.CheckItem.Name = "write tests"
	a.Data.CheckItem.State = "Complete"

	ev := normalizeAction(a)
	if ev.ChecklistItemName != "write tests" || ev.ChecklistItemState != ChecklistComplete {
		t.Errorf("checklist fields = %+v", ev)
	}

	var b trelloAction
	b.Type = "addAttachmentToCard"
	b.Data.Card.ID = "c1"
	b.Data.Attachment.Name = "report.md"
	b.Data.Attachment.URL = "https://files.test/report.md"

	ev = normalizeAction(b)
	if ev.Attachment == nil || ev.Attachment.URL != "https://files.test/report.md" {
		t.Errorf("attachment = %+v", ev.Attachment)
	}

	var c trelloAction
	c.Type = "addAttachmentToCard"
	ev = normalizeAction(c)
	if ev.Attachment != nil {
		t.Error("empty attachment data should not produce an Attachment")
	}
}

func TestFindBoard(t *testing.T) {
	client, srv := testTrelloClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/members/me/boards" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" || r.URL.Query().Get("token") != "t" {
			t.Error("credentials missing from query")
		}
		json.NewEncoder(w).Encode([]trelloBoard{
			{ID: "b1", Name: "Other Board"},
			{ID: "b2", Name: "Team Board"},
		})
	}))
	defer srv.Close()

	board, err := client.FindBoard("team board")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if board.ID != "b2" {
		t.Errorf("board = %+v", board)
	}

	_, err = client.FindBoard("Missing Board")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "board" {
		t.Fatalf("expected board NotFoundError, got %v", err)
	}
}

func TestFindListNotFound(t *testing.T) {
	client, srv := testTrelloClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]trelloList{{ID: "l1", Name: "Backlog"}})
	}))
	defer srv.Close()

	_, err := client.FindList("b1", "Meeting Notes")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "list" || nf.Name != "Meeting Notes" {
		t.Fatalf("expected list NotFoundError, got %v", err)
	}
}

func TestBoardActionsParams(t *testing.T) {
	w := Window{
		Since: time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC),
	}
	client, srv := testTrelloClient(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "1000" {
			t.Errorf("limit = %q", q.Get("limit"))
		}
		if q.Get("since") != w.SinceISO() || q.Get("before") != w.UntilISO() {
			t.Errorf("window params = %q / %q", q.Get("since"), q.Get("before"))
		}
		if q.Get("filter") != "all" {
			t.Errorf("filter = %q", q.Get("filter"))
		}
		rw.Write([]byte(`[{"type":"commentCard","data":{"card":{"id":"c1"},"text":"hi"}}]`))
	}))
	defer srv.Close()

	events, err := client.BoardActions("b1", w, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindCommentAdded || events[0].CommentText != "hi" {
		t.Fatalf("events = %+v", events)
	}
}

func TestUpstreamErrorSurfaced(t *testing.T) {
	client, srv := testTrelloClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	_, err := client.ListBoards()
	var up *UpstreamHTTPError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamHTTPError, got %v", err)
	}
	if up.Status != 401 || up.Service != "Trello" {
		t.Errorf("error = %+v", up)
	}
}

func TestCardMetaChecklistCount(t *testing.T) {
	client, srv := testTrelloClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boards/b1/lists":
			json.NewEncoder(w).Encode([]trelloList{{ID: "l1", Name: "In Progress"}})
		case "/cards/c1":
			w.Write([]byte(`{
				"id": "c1", "name": "Task", "shortUrl": "https://trello.test/c1", "idList": "l1",
				"labels": [{"name": "bug", "color": "red"}],
				"members": [{"fullName": "Alice", "username": "alice"}],
				"checklists": [{"checkItems": [{"state": "complete"}, {"state": "incomplete"}, {"state": "complete"}]}]
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	fetcher, err := client.MetaFetcher("b1")
	if err != nil {
		t.Fatalf("building meta fetcher: %v", err)
	}
	meta, err := fetcher.CardMeta("c1")
	if err != nil {
		t.Fatalf("fetching meta: %v", err)
	}
	if meta.Name != "Task" || meta.URL != "https://trello.test/c1" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.ListName != "In Progress" {
		t.Errorf("list name = %q", meta.ListName)
	}
	if meta.Checklist.Completed != 2 || meta.Checklist.Total != 3 {
		t.Errorf("checklist = %+v", meta.Checklist)
	}
	if len(meta.Owners) != 1 || meta.Owners[0].FullName != "Alice" {
		t.Errorf("owners = %+v", meta.Owners)
	}
}

func TestCreateCardTruncatesDesc(t *testing.T) {
	var received createCardPayload
	client, srv := testTrelloClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"id": "new-card"}`))
	}))
	defer srv.Close()

	id, err := client.CreateCard(CreateCardRequest{
		ListID: "l1",
		Name:   "digest",
		Desc:   strings.Repeat("x", maxCardDescChars+100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "new-card" {
		t.Errorf("id = %q", id)
	}
	if len(received.Desc) != maxCardDescChars {
		t.Errorf("desc length = %d, want %d", len(received.Desc), maxCardDescChars)
	}
}

func TestCreateCardTruncatesDescOnRuneBoundary(t *testing.T) {
	var received createCardPayload
	client, srv := testTrelloClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"id": "new-card"}`))
	}))
	defer srv.Close()

	if _, err := client.CreateCard(CreateCardRequest{
		ListID: "l1",
		Name:   "digest",
		Desc:   strings.Repeat("é", maxCardDescChars+10),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := utf8.RuneCountInString(received.Desc); got != maxCardDescChars {
		t.Errorf("desc rune count = %d, want %d", got, maxCardDescChars)
	}
	if !utf8.ValidString(received.Desc) {
		t.Error("truncated desc must stay valid UTF-8")
	}
}
