package api

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/relprobe/relprobe/internal/report"
)

type reportResponse struct {
	Split string       `json:"split"`
	Rows  []report.Row `json:"rows"`
}

// handleReport returns the summary rows for one split, validation by
// default; ?split=test selects test runs.
func (s *Server) handleReport(c *echo.Context) error {
	if s.store == nil {
		return writeServerError(c, "no run store bound")
	}
	split := c.QueryParam("split")
	if split == "" {
		split = "valid"
	}
	if split != "valid" && split != "test" {
		return writeBadRequest(c, "split must be valid or test")
	}
	runs, err := s.store.Runs()
	if err != nil {
		return writeServerError(c, err.Error())
	}
	rows := report.Rows(runs, split)
	if rows == nil {
		rows = []report.Row{}
	}
	return c.JSON(http.StatusOK, reportResponse{Split: split, Rows: rows})
}
