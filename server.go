package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// Server exposes the fetch/normalize passes as HTTP proxy endpoints
// for the static frontend. Credentials stay server-side.
type Server struct {
	cfg    Config
	trello *TrelloClient
	github *GitHubClient
}

func NewServer(cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		trello: NewTrelloClient(cfg),
		github: NewGitHubClient(cfg),
	}
}

func StartServer(cfg Config) error {
	s := NewServer(cfg)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(cfg.AllowedOrigins),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.routes(e)

	log.Printf("Starting digest proxy on %s", cfg.ListenAddr)
	return e.Start(cfg.ListenAddr)
}

func allowedOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (s *Server) routes(e *echo.Echo) {
	e.GET("/api/github/commits", s.handleGitHubCommits)
	e.GET("/api/github/org-commits", s.handleGitHubOrgCommits)
	e.GET("/api/trello/meeting-notes", s.handleMeetingNotes)
	e.POST("/api/trello/meeting-notes", s.handleMeetingNotes)
	e.GET("/api/trello/board-actions", s.handleBoardActions)
	e.POST("/api/trello/board-actions", s.handleBoardActions)
	e.POST("/api/llm/summarize", s.handleSummarize)
}

type apiErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func apiError(c echo.Context, err error) error {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, apiErrorBody{Error: nf.Error()})
	}
	var up *UpstreamHTTPError
	if errors.As(err, &up) {
		status := up.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		return c.JSON(status, apiErrorBody{
			Error:   fmt.Sprintf("%s HTTP %d", up.Service, up.Status),
			Details: up.Body,
		})
	}
	return c.JSON(http.StatusBadGateway, apiErrorBody{Error: "upstream request failed", Details: err.Error()})
}

func parseWindowParams(since, until string) (Window, error) {
	s, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return Window{}, fmt.Errorf("invalid since %q", since)
	}
	u, err := time.Parse(time.RFC3339, until)
	if err != nil {
		return Window{}, fmt.Errorf("invalid until %q", until)
	}
	return Window{Since: s.UTC(), Until: u.UTC()}, nil
}

// param reads a request value from the query string or, on POST, the
// JSON body that was bound into m.
func param(c echo.Context, m map[string]string, key string) string {
	if v := strings.TrimSpace(c.QueryParam(key)); v != "" {
		return v
	}
	return strings.TrimSpace(m[key])
}

func bindBodyParams(c echo.Context) map[string]string {
	m := map[string]string{}
	if c.Request().Method == http.MethodPost {
		var body map[string]any
		if err := c.Bind(&body); err == nil {
			for k, v := range body {
				if s, ok := v.(string); ok {
					m[k] = s
				}
			}
		}
	}
	return m
}

func (s *Server) handleGitHubCommits(c echo.Context) error {
	owner := strings.TrimSpace(c.QueryParam("owner"))
	repo := strings.TrimSpace(c.QueryParam("repo"))
	branch := strings.TrimSpace(c.QueryParam("branch"))
	if branch == "" {
		branch = "main"
	}
	since := strings.TrimSpace(c.QueryParam("since"))
	until := strings.TrimSpace(c.QueryParam("until"))
	if owner == "" || repo == "" || since == "" || until == "" {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: "Missing required params: owner, repo, since, until"})
	}
	w, err := parseWindowParams(since, until)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: err.Error()})
	}

	commits, err := s.github.ListCommits(owner, repo, branch, w)
	if err != nil {
		return apiError(c, err)
	}
	if commits == nil {
		commits = []Commit{}
	}
	return c.JSON(http.StatusOK, commits)
}

func (s *Server) handleGitHubOrgCommits(c echo.Context) error {
	org := strings.TrimSpace(c.QueryParam("org"))
	since := strings.TrimSpace(c.QueryParam("since"))
	until := strings.TrimSpace(c.QueryParam("until"))
	reposFilter := strings.TrimSpace(c.QueryParam("repos"))
	if org == "" || since == "" || until == "" {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: "Missing required params: org, since, until"})
	}
	w, err := parseWindowParams(since, until)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: err.Error()})
	}

	var filter []string
	if reposFilter != "" {
		filter = strings.Split(reposFilter, ",")
	}
	groups, err := s.github.FetchOrgCommits(org, w, filter)
	if err != nil {
		return apiError(c, err)
	}
	if groups == nil {
		groups = []CommitGroup{}
	}
	return c.JSON(http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleMeetingNotes(c echo.Context) error {
	body := bindBodyParams(c)
	boardName := param(c, body, "boardName")
	listName := param(c, body, "listName")
	since := param(c, body, "since")
	until := param(c, body, "until")
	if boardName == "" || listName == "" || since == "" || until == "" {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: "Missing required params: boardName, listName, since, until"})
	}
	w, err := parseWindowParams(since, until)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: err.Error()})
	}

	notes, err := s.trello.FetchMeetingNotes(boardName, listName, w)
	if err != nil {
		return apiError(c, err)
	}
	if notes == nil {
		notes = []NoteCard{}
	}
	return c.JSON(http.StatusOK, notes)
}

func (s *Server) handleBoardActions(c echo.Context) error {
	body := bindBodyParams(c)
	boardName := param(c, body, "boardName")
	since := param(c, body, "since")
	until := param(c, body, "until")
	types := param(c, body, "types")
	inProgressList := param(c, body, "inProgressList")
	completedList := param(c, body, "completedList")
	if boardName == "" || since == "" || until == "" {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: "Missing required params: boardName, since, until"})
	}
	w, err := parseWindowParams(since, until)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: err.Error()})
	}

	board, err := s.trello.FindBoard(boardName)
	if err != nil {
		return apiError(c, err)
	}
	events, err := s.trello.BoardActions(board.ID, w, types)
	if err != nil {
		return apiError(c, err)
	}
	fetcher, err := s.trello.MetaFetcher(board.ID)
	if err != nil {
		log.Printf("board-actions meta fetcher error: %v", err)
		fetcher = nil
	}

	groups := ClassifyActivity(events, AliasConfig{
		InProgress: aliasSlice(inProgressList),
		Completed:  aliasSlice(completedList),
	}, fetcher)
	if groups == nil {
		groups = []ColumnGroup{}
	}
	return c.JSON(http.StatusOK, map[string]any{"groups": groups})
}

type summarizeRequest struct {
	SystemPrompt string         `json:"systemPrompt"`
	Input        summarizeInput `json:"input"`
}

type summarizeInput struct {
	Week struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"week"`
	Transcripts []TranscriptEntry `json:"transcripts"`
	GitHub      []CommitGroup     `json:"github"`
	Trello      []NoteCard        `json:"trello"`
	Activity    []ColumnGroup     `json:"activity"`
}

func (s *Server) handleSummarize(c echo.Context) error {
	var req summarizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: "Missing systemPrompt"})
	}
	if !s.cfg.LLMConfigured() {
		return c.JSON(http.StatusBadRequest, apiErrorBody{Error: "Missing ANTHROPIC_API_KEY"})
	}

	in := DigestInput{
		Transcripts: req.Input.Transcripts,
		Commits:     req.Input.GitHub,
		Notes:       req.Input.Trello,
		Activity:    req.Input.Activity,
	}
	if start, err := time.Parse("2006-01-02", req.Input.Week.StartDate); err == nil {
		in.Window.Since = start.UTC()
	}
	if end, err := time.Parse("2006-01-02", req.Input.Week.EndDate); err == nil {
		in.Window.Until = end.UTC()
	}

	text, err := chatComplete(s.cfg.AnthropicAPIKey, s.cfg.LLMModel, req.SystemPrompt, buildUserContent(in))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}
