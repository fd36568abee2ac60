package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/damacus/dataset-explorer/internal/explorer"
	"github.com/damacus/dataset-explorer/internal/models"
	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/damacus/dataset-explorer/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ExplorerHandler struct {
	explorer *explorer.Explorer
	states   *services.StateService
	logger   *zap.Logger
}

func NewExplorerHandler(exp *explorer.Explorer, states *services.StateService, logger *zap.Logger) *ExplorerHandler {
	return &ExplorerHandler{explorer: exp, states: states, logger: logger}
}

// Index renders the explorer page with the form values from the session
func (h *ExplorerHandler) Index(c echo.Context) error {
	state := GetFormState(c)
	return c.Render(http.StatusOK, "explorer", models.ExplorerPage{
		CSRFToken:  CSRFToken(c),
		DatasetID:  state.DatasetID,
		SnapshotID: state.SnapshotID,
	})
}

// Explore runs one exploration and renders its result.
// HTMX requests get the results partial, plain form posts the whole page.
func (h *ExplorerHandler) Explore(c echo.Context) error {
	state := services.FormState{
		DatasetID:  strings.TrimSpace(c.FormValue("datasetId")),
		SnapshotID: strings.TrimSpace(c.FormValue("snapshotId")),
	}
	h.saveState(c, state)

	res := h.explorer.Explore(c.Request().Context(), explorer.Request{
		DatasetID:  state.DatasetID,
		SnapshotID: state.SnapshotID,
		Token:      GetToken(c),
		Header:     c.Request().Header,
	})

	status := http.StatusOK
	if res.Outcome == explorer.OutcomeInert {
		status = http.StatusBadRequest
		res.Notices = append(res.Notices, explorer.Notice{
			Level: explorer.LevelWarning,
			Text:  "Enter a dataset ID to explore",
		})
	}
	view := newResultsView(res)

	if isHTMX(c) {
		// htmx does not swap 4xx responses, the notice has to arrive as a 200
		return c.Render(http.StatusOK, "explore_results", view)
	}
	return c.Render(status, "explorer", models.ExplorerPage{
		CSRFToken:  CSRFToken(c),
		DatasetID:  state.DatasetID,
		SnapshotID: state.SnapshotID,
		Results:    view,
	})
}

// ExportCSV streams the file listing of a dataset as CSV
func (h *ExplorerHandler) ExportCSV(c echo.Context) error {
	datasetID := strings.TrimSpace(c.QueryParam("datasetId"))
	if datasetID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "datasetId is required")
	}

	res := h.explorer.Explore(c.Request().Context(), explorer.Request{
		DatasetID:  datasetID,
		SnapshotID: c.QueryParam("snapshotId"),
		Token:      GetToken(c),
		Header:     c.Request().Header,
	})

	switch {
	case res.Failed(explorer.FailureMissingCredential):
		return echo.NewHTTPError(http.StatusUnauthorized, res.Failures[0].Message)
	case res.Outcome == explorer.OutcomeError:
		return echo.NewHTTPError(http.StatusBadGateway, res.Failures[0].Message)
	case res.Outcome == explorer.OutcomeEmpty:
		return echo.NewHTTPError(http.StatusNotFound, "No files found in this dataset")
	}

	records := make([]models.FileRecord, 0, len(res.Files))
	for i, f := range res.Files {
		// Entries whose name cannot be displayed still export with their other columns
		name, _ := f.DisplayName()
		record := models.FileRecord{
			Index:       i + 1,
			Name:        name,
			Path:        f.Path,
			Size:        f.Size,
			ContentType: f.ContentType,
		}
		if !f.LastModified.IsZero() {
			record.LastModified = f.LastModified.UTC().Format(time.RFC3339)
		}
		records = append(records, record)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", datasetID+".csv"))
	c.Response().WriteHeader(http.StatusOK)
	return gocsv.Marshal(records, c.Response())
}

func (h *ExplorerHandler) saveState(c echo.Context, state services.FormState) {
	sealed, err := h.states.Seal(state)
	if err != nil {
		h.logger.Warn("failed to seal form state", zap.Error(err))
		return
	}

	cookie := new(http.Cookie)
	cookie.Name = utils.CookieName
	cookie.Value = sealed
	cookie.Expires = time.Now().Add(24 * time.Hour)
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteStrictMode
	cookie.Secure = utils.IsSecureRequest(c.Request())
	c.SetCookie(cookie)
}

func newResultsView(res *explorer.Result) *models.ResultsView {
	view := &models.ResultsView{Result: res}

	for i, line := range res.Lines {
		row := models.FileRow{Index: i + 1, Line: line}
		if i < len(res.Files) {
			f := res.Files[i]
			row.Path = f.Path
			row.Size = f.Size
			row.FormattedSize = humanize.Bytes(uint64(f.Size))
			row.LastModified = f.LastModified
			row.ContentType = f.ContentType
			if !f.LastModified.IsZero() {
				row.Modified = humanize.Time(f.LastModified)
			}
		}
		view.Rows = append(view.Rows, row)
	}

	if res.Outcome == explorer.OutcomeFiles {
		query := url.Values{"datasetId": {res.DatasetID}}
		if res.SnapshotID != "" {
			query.Set("snapshotId", res.SnapshotID)
		}
		view.ExportURL = "/datasets/files.csv?" + query.Encode()
	}
	return view
}
