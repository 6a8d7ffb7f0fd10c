// Package api exposes scoring, mining, and reporting over HTTP.
package api

import (
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/relprobe/relprobe/internal/experiment"
	"github.com/relprobe/relprobe/internal/prompt"
	"github.com/relprobe/relprobe/internal/score"
)

type Server struct {
	scorer   *score.Scorer
	prompter *prompt.Prompter
	store    *experiment.Store
	jobs     *JobStore
	clock    func() time.Time
}

// NewServer wires the HTTP surface around an optional scorer, prompter,
// and run store. Endpoints whose collaborator is missing answer 500.
func NewServer(scorer *score.Scorer, prompter *prompt.Prompter, store *experiment.Store) *Server {
	return &Server{
		scorer:   scorer,
		prompter: prompter,
		store:    store,
		jobs:     NewJobStore(),
		clock:    time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/perplexity", s.handlePerplexity)
	e.POST("/v1/analogy", s.handleAnalogy)
	e.POST("/v1/mine", s.handleMine)
	e.GET("/v1/jobs/:id", s.handleGetJob)
	e.GET("/v1/report", s.handleReport)
}

func (s *Server) handleModel(c *echo.Context) error {
	if s.scorer == nil {
		return writeServerError(c, "no model bound")
	}
	return c.JSON(http.StatusOK, map[string]any{"info": s.scorer.Info()})
}

type responseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeServerError(c *echo.Context, msg string) error {
	return writeError(c, http.StatusInternalServerError, "server_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": responseError{Message: msg, Type: errType},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
