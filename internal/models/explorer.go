// Package models contains data structures used across handlers
package models

import (
	"time"

	"github.com/damacus/dataset-explorer/internal/explorer"
)

// FileRow is one file entry with display metadata
type FileRow struct {
	Index         int
	Line          string
	Path          string
	Size          int64
	FormattedSize string
	LastModified  time.Time
	Modified      string
	ContentType   string
}

// FileRecord is one row of the CSV export
type FileRecord struct {
	Index        int    `csv:"index"`
	Name         string `csv:"name"`
	Path         string `csv:"path"`
	Size         int64  `csv:"size"`
	LastModified string `csv:"last_modified"`
	ContentType  string `csv:"content_type"`
}

// ExplorerPage is the full page: the form plus the last result, if any
type ExplorerPage struct {
	CSRFToken  string
	DatasetID  string
	SnapshotID string
	Results    *ResultsView
}

// ResultsView is the HTMX-swapped results area
type ResultsView struct {
	*explorer.Result
	Rows []FileRow
	// ExportURL is set only when the result has files to export
	ExportURL string
}
