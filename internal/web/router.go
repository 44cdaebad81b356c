package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mikelady/commitcast/internal/bot"
	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/services"
	"github.com/mikelady/commitcast/internal/session"
)

// Commands is the review command set served over HTTP
type Commands interface {
	List(ctx context.Context, userID string) (*session.Session, error)
	Select(ctx context.Context, userID string, rawIndices []string) (*session.Session, error)
	Regenerate(ctx context.Context, userID, channelID string) (*session.Session, error)
	Discard(userID, channelID string) (*session.Session, error)
	ConfirmPublish(ctx context.Context, userID, channelID string) (*services.PostResult, error)
	Show(userID, channelID string) (*session.Session, error)
	Repos(ctx context.Context, username string) ([]string, error)
	Config() bot.Config
}

var _ Commands = (*bot.Commands)(nil)

// CommandRequest is the JSON body of the command endpoints
type CommandRequest struct {
	UserID    string   `json:"user_id"`
	ChannelID string   `json:"channel_id"`
	Indices   []string `json:"indices"`
}

// SessionView is the JSON rendering of a session
type SessionView struct {
	Key             string          `json:"key"`
	State           session.State   `json:"state"`
	Commits         []models.Commit `json:"commits,omitempty"`
	SelectedCommits []models.Commit `json:"selected_commits,omitempty"`
	Summary         *string         `json:"summary,omitempty"`
	Post            *string         `json:"post,omitempty"`
	ProjectName     *string         `json:"project_name,omitempty"`
	PendingPost     bool            `json:"pending_post"`
	DraftID         string          `json:"draft_id,omitempty"`
	Characters      int             `json:"characters,omitempty"`
	Message         string          `json:"message"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// Router serves the review API on echo
type Router struct {
	echo     *echo.Echo
	commands Commands
	logger   zerolog.Logger
}

// NewRouter creates the API routes over commands
func NewRouter(commands Commands, logger zerolog.Logger) *Router {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	r := &Router{
		echo:     e,
		commands: commands,
		logger:   logger.With().Str("component", "web").Logger(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			r.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request handled")
			return nil
		},
	}))

	r.setupRoutes()
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.echo.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	r.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := r.echo.Group("/api")
	api.GET("/repos", r.handleRepos)
	api.POST("/commits/list", r.handleList)
	api.GET("/drafts", r.handleShow)
	api.POST("/drafts/select", r.handleSelect)
	api.POST("/drafts/regenerate", r.handleRegenerate)
	api.POST("/drafts/discard", r.handleDiscard)
	api.POST("/drafts/publish", r.handlePublish)
}

func (r *Router) handleRepos(c echo.Context) error {
	repos, err := r.commands.Repos(c.Request().Context(), c.QueryParam("username"))
	if err != nil {
		return r.fail(c, err)
	}
	if repos == nil {
		repos = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"repos": repos})
}

func (r *Router) handleList(c echo.Context) error {
	req, err := bindCommand(c)
	if err != nil {
		return r.fail(c, err)
	}

	sess, err := r.commands.List(c.Request().Context(), req.UserID)
	if err != nil {
		return r.fail(c, err)
	}

	view := r.view(sess)
	view.Message = bot.RenderCommitList(sess.Commits)
	return c.JSON(http.StatusOK, view)
}

func (r *Router) handleSelect(c echo.Context) error {
	req, err := bindCommand(c)
	if err != nil {
		return r.fail(c, err)
	}

	sess, err := r.commands.Select(c.Request().Context(), req.UserID, req.Indices)
	if err != nil {
		return r.fail(c, err)
	}
	return c.JSON(http.StatusOK, r.view(sess))
}

func (r *Router) handleRegenerate(c echo.Context) error {
	req, err := bindCommand(c)
	if err != nil {
		return r.fail(c, err)
	}

	sess, err := r.commands.Regenerate(c.Request().Context(), req.UserID, req.ChannelID)
	if err != nil {
		return r.fail(c, err)
	}
	return c.JSON(http.StatusOK, r.view(sess))
}

func (r *Router) handleDiscard(c echo.Context) error {
	req, err := bindCommand(c)
	if err != nil {
		return r.fail(c, err)
	}

	sess, err := r.commands.Discard(req.UserID, req.ChannelID)
	if err != nil {
		return r.fail(c, err)
	}

	view := r.view(sess)
	view.Message = "Draft discarded."
	return c.JSON(http.StatusOK, view)
}

func (r *Router) handlePublish(c echo.Context) error {
	req, err := bindCommand(c)
	if err != nil {
		return r.fail(c, err)
	}

	result, err := r.commands.ConfirmPublish(c.Request().Context(), req.UserID, req.ChannelID)
	if err != nil {
		return r.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"post_id":  result.PostID,
		"post_url": result.PostURL,
		"platform": result.Platform,
		"message":  "Published: " + result.PostURL,
	})
}

func (r *Router) handleShow(c echo.Context) error {
	sess, err := r.commands.Show(c.QueryParam("user_id"), c.QueryParam("channel_id"))
	if err != nil {
		return r.fail(c, err)
	}
	return c.JSON(http.StatusOK, r.view(sess))
}

func bindCommand(c echo.Context) (*CommandRequest, error) {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return nil, errors.Join(services.ErrValidation, err)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.ChannelID = strings.TrimSpace(req.ChannelID)
	return &req, nil
}

func (r *Router) view(sess *session.Session) SessionView {
	cfg := r.commands.Config()
	view := SessionView{
		Key:             sess.Key.String(),
		State:           sess.State(),
		Commits:         sess.Commits,
		SelectedCommits: sess.SelectedCommits,
		Summary:         sess.GeneratedSummary,
		Post:            sess.GeneratedPost,
		ProjectName:     sess.ProjectName,
		PendingPost:     sess.PendingPost,
		DraftID:         sess.DraftID,
	}
	if sess.GeneratedPost != nil {
		view.Characters = services.TextLength(*sess.GeneratedPost)
		view.Message = bot.RenderDraft(sess, cfg.CharLimit, cfg.MaxSummaryDisplay)
	}
	return view
}

// fail writes err as JSON with the status for its kind
func (r *Router) fail(c echo.Context, err error) error {
	status := StatusFor(err)
	event := r.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = r.logger.Error()
	}
	event.Err(err).Str("path", c.Path()).Int("status", status).Msg("Command failed")
	return c.JSON(status, ErrorResponse{Error: services.UserMessage(err)})
}

// StatusFor maps the error taxonomy onto HTTP statuses
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrQuotaExceeded), errors.Is(err, services.ErrCreditsDepleted):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrInsufficientPermissions):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}
