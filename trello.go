package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const (
	trelloBaseURL     = "https://api.trello.com/1"
	trelloActionLimit = 1000
	maxCardDescChars  = 16000
)

// NotFoundError reports a named board or list that does not exist on
// the account. Callers may catch it and substitute an empty section.
type NotFoundError struct {
	Kind string // "board" or "list"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// UpstreamHTTPError is a non-2xx response from an external API.
type UpstreamHTTPError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Service, e.Status, e.Body)
}

type TrelloClient struct {
	Key     string
	Token   string
	BaseURL string
	HTTP    *http.Client
}

func NewTrelloClient(cfg Config) *TrelloClient {
	return &TrelloClient{
		Key:     cfg.TrelloKey,
		Token:   cfg.TrelloToken,
		BaseURL: trelloBaseURL,
		HTTP:    externalHTTPClient,
	}
}

func (c *TrelloClient) get(path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.Key)
	params.Set("token", c.Token)

	resp, err := c.HTTP.Get(c.BaseURL + path + "?" + params.Encode())
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamHTTPError{Service: "Trello", Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func (c *TrelloClient) post(path string, payload any, out any) error {
	params := url.Values{}
	params.Set("key", c.Key)
	params.Set("token", c.Token)

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	resp, err := c.HTTP.Post(c.BaseURL+path+"?"+params.Encode(), "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamHTTPError{Service: "Trello", Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

type trelloBoard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type trelloList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type trelloCard struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Desc             string `json:"desc"`
	DateLastActivity string `json:"dateLastActivity"`
	ShortURL         string `json:"shortUrl"`
}

func (c *TrelloClient) ListBoards() ([]trelloBoard, error) {
	var boards []trelloBoard
	params := url.Values{}
	params.Set("fields", "name")
	if err := c.get("/members/me/boards", params, &boards); err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	return boards, nil
}

// FindBoard resolves a board by case-insensitive display name.
func (c *TrelloClient) FindBoard(name string) (trelloBoard, error) {
	boards, err := c.ListBoards()
	if err != nil {
		return trelloBoard{}, err
	}
	for _, b := range boards {
		if strings.EqualFold(b.Name, name) {
			return b, nil
		}
	}
	return trelloBoard{}, &NotFoundError{Kind: "board", Name: name}
}

func (c *TrelloClient) ListLists(boardID string) ([]trelloList, error) {
	var lists []trelloList
	if err := c.get("/boards/"+boardID+"/lists", nil, &lists); err != nil {
		return nil, fmt.Errorf("listing lists: %w", err)
	}
	return lists, nil
}

func (c *TrelloClient) FindList(boardID, name string) (trelloList, error) {
	lists, err := c.ListLists(boardID)
	if err != nil {
		return trelloList{}, err
	}
	for _, l := range lists {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	return trelloList{}, &NotFoundError{Kind: "list", Name: name}
}

func (c *TrelloClient) ListCards(listID string) ([]trelloCard, error) {
	var cards []trelloCard
	params := url.Values{}
	params.Set("fields", "name,desc,dateLastActivity,shortUrl")
	if err := c.get("/lists/"+listID+"/cards", params, &cards); err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	return cards, nil
}

// trelloAction is the raw audit-log record shape. Only the fields the
// digest reads are declared; everything else is dropped on decode.
type trelloAction struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	MemberCreator struct {
		FullName string `json:"fullName"`
	} `json:"memberCreator"`
	Data struct {
		Card struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"card"`
		List struct {
			Name string `json:"name"`
		} `json:"list"`
		ListBefore struct {
			Name string `json:"name"`
		} `json:"listBefore"`
		ListAfter struct {
			Name string `json:"name"`
		} `json:"listAfter"`
		Text      string `json:"text"`
		CheckItem struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"checkItem"`
		Attachment struct {
			Name     string `json:"name"`
			URL      string `json:"url"`
			MimeType string `json:"mimeType"`
		} `json:"attachment"`
	} `json:"data"`
}

// BoardActions fetches the board's audit log for the window and
// normalizes every record into an ActivityEvent, preserving the
// source stream order.
func (c *TrelloClient) BoardActions(boardID string, w Window, filter string) ([]ActivityEvent, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", trelloActionLimit))
	params.Set("since", w.SinceISO())
	params.Set("before", w.UntilISO())
	if filter == "" || strings.EqualFold(filter, "all") {
		params.Set("filter", "all")
	} else {
		params.Set("filter", filter)
	}

	var raw []trelloAction
	if err := c.get("/boards/"+boardID+"/actions", params, &raw); err != nil {
		return nil, fmt.Errorf("listing board actions: %w", err)
	}

	events := make([]ActivityEvent, 0, len(raw))
	for _, a := range raw {
		events = append(events, normalizeAction(a))
	}
	log.Printf("trello fetch actions board=%s count=%d", boardID, len(events))
	return events, nil
}

func normalizeAction(a trelloAction) ActivityEvent {
	ev := ActivityEvent{
		Kind:       mapActionType(a.Type),
		Actor:      a.MemberCreator.FullName,
		CardID:     a.Data.Card.ID,
		CardName:   a.Data.Card.Name,
		ListAfter:  a.Data.ListAfter.Name,
		ListBefore: a.Data.ListBefore.Name,
	}
	// Creates and copies report the landing list as data.list.
	if ev.ListBefore == "" {
		ev.ListBefore = a.Data.List.Name
	}
	if t, err := time.Parse(time.RFC3339, a.Date); err == nil {
		ev.OccurredAt = t
	}
	switch ev.Kind {
	case KindCommentAdded:
		ev.CommentText = a.Data.Text
	case KindChecklistItemState:
		ev.ChecklistItemName = a.Data.CheckItem.Name
		ev.ChecklistItemState = mapChecklistState(a.Data.CheckItem.State)
	case KindAttachmentAdded:
		if a.Data.Attachment.Name != "" || a.Data.Attachment.URL != "" {
			ev.Attachment = &Attachment{
				Name:     a.Data.Attachment.Name,
				URL:      a.Data.Attachment.URL,
				MimeType: a.Data.Attachment.MimeType,
			}
		}
	}
	return ev
}

func mapActionType(t string) EventKind {
	switch strings.TrimSpace(t) {
	case "updateCard":
		return KindCardMoved
	case "createCard":
		return KindCardCreated
	case "copyCard":
		return KindCardCopied
	case "moveCardToBoard":
		return KindCardMovedToBoard
	case "commentCard":
		return KindCommentAdded
	case "updateCheckItemStateOnCard":
		return KindChecklistItemState
	case "addAttachmentToCard":
		return KindAttachmentAdded
	default:
		return KindOther
	}
}

func mapChecklistState(s string) ChecklistItemState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete":
		return ChecklistComplete
	case "incomplete":
		return ChecklistIncomplete
	default:
		return ChecklistOther
	}
}

type trelloCardDetail struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ShortURL   string      `json:"shortUrl"`
	IDList     string      `json:"idList"`
	Labels     []CardLabel `json:"labels"`
	Members    []CardOwner `json:"members"`
	Checklists []struct {
		CheckItems []struct {
			State string `json:"state"`
		} `json:"checkItems"`
	} `json:"checklists"`
}

// boardMetaFetcher resolves per-card metadata against one board,
// carrying the board's list id to name mapping.
type boardMetaFetcher struct {
	client   *TrelloClient
	listName map[string]string
}

// MetaFetcher returns a CardMetaFetcher for the board, fetching the
// board's lists once up front so list names resolve without extra
// calls per card.
func (c *TrelloClient) MetaFetcher(boardID string) (CardMetaFetcher, error) {
	lists, err := c.ListLists(boardID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(lists))
	for _, l := range lists {
		names[l.ID] = l.Name
	}
	return &boardMetaFetcher{client: c, listName: names}, nil
}

func (f *boardMetaFetcher) CardMeta(cardID string) (CardMeta, error) {
	params := url.Values{}
	params.Set("fields", "name,shortUrl,idList,labels")
	params.Set("members", "true")
	params.Set("member_fields", "fullName,username")
	params.Set("checklists", "all")

	var detail trelloCardDetail
	if err := f.client.get("/cards/"+cardID, params, &detail); err != nil {
		return CardMeta{}, fmt.Errorf("fetching card %s: %w", cardID, err)
	}

	progress := ChecklistProgress{}
	for _, cl := range detail.Checklists {
		for _, item := range cl.CheckItems {
			progress.Total++
			if strings.EqualFold(strings.TrimSpace(item.State), "complete") {
				progress.Completed++
			}
		}
	}
	return CardMeta{
		CardID:    cardID,
		Name:      detail.Name,
		URL:       detail.ShortURL,
		ListName:  f.listName[detail.IDList],
		Owners:    detail.Members,
		Labels:    detail.Labels,
		Checklist: progress,
	}, nil
}

type CreateCardRequest struct {
	ListID    string
	Name      string
	Desc      string
	MemberIDs []string
	LabelIDs  []string
	Due       string
	Pos       string
}

type createCardPayload struct {
	IDList    string   `json:"idList"`
	Name      string   `json:"name"`
	Desc      string   `json:"desc"`
	IDMembers []string `json:"idMembers,omitempty"`
	IDLabels  []string `json:"idLabels,omitempty"`
	Due       string   `json:"due,omitempty"`
	Pos       string   `json:"pos,omitempty"`
}

// CreateCard creates a card on the given list, truncating the
// description to the API's hard limit.
func (c *TrelloClient) CreateCard(req CreateCardRequest) (string, error) {
	desc := req.Desc
	if utf8.RuneCountInString(desc) > maxCardDescChars {
		desc = string([]rune(desc)[:maxCardDescChars])
	}
	payload := createCardPayload{
		IDList:    req.ListID,
		Name:      req.Name,
		Desc:      desc,
		IDMembers: req.MemberIDs,
		IDLabels:  req.LabelIDs,
		Due:       req.Due,
		Pos:       req.Pos,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.post("/cards", payload, &created); err != nil {
		return "", fmt.Errorf("creating card: %w", err)
	}
	return created.ID, nil
}

// AttachFile uploads a local file as a card attachment.
func (c *TrelloClient) AttachFile(cardID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening attachment: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("building attachment form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing attachment form: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.Key)
	params.Set("token", c.Token)
	resp, err := c.HTTP.Post(c.BaseURL+"/cards/"+cardID+"/attachments?"+params.Encode(), mw.FormDataContentType(), &buf)
	if err != nil {
		return fmt.Errorf("uploading attachment: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamHTTPError{Service: "Trello", Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}
