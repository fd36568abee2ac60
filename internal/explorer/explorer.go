// Package explorer runs one dataset exploration: resolve the dataset, pin a
// snapshot, list its files and derive display lines. Every step reports a
// typed failure in the Result instead of returning an error, so the caller
// only has to render it.
package explorer

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// debugEntryLimit bounds the per-entry debug output and the raw preview.
const debugEntryLimit = 3

// Request is the input of one trigger. DatasetID and SnapshotID are trimmed
// of surrounding whitespace before use, so a whitespace-only DatasetID is blank.
type Request struct {
	DatasetID  string
	SnapshotID string
	Token      services.Token
	// Header is shown, masked, in the debug panel.
	Header http.Header
}

// Explorer runs explorations against datasets created by a client factory.
type Explorer struct {
	factory services.DatasetClientFactory
	logger  *zap.Logger
}

func New(factory services.DatasetClientFactory, logger *zap.Logger) *Explorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explorer{factory: factory, logger: logger}
}

// Explore runs the exploration for req. It never panics on upstream failures
// and never retries; each call is independent of the previous one.
func (e *Explorer) Explore(ctx context.Context, req Request) *Result {
	res := &Result{
		ID:         uuid.NewString(),
		DatasetID:  strings.TrimSpace(req.DatasetID),
		SnapshotID: strings.TrimSpace(req.SnapshotID),
	}
	log := e.logger.With(zap.String("request_id", res.ID), zap.String("dataset_id", res.DatasetID))

	res.Debug.Headers = maskHeaders(req.Header)
	info := res.Debug.section("Dataset Information")
	info.code("Dataset ID: " + res.DatasetID)
	if res.SnapshotID != "" {
		info.code("Snapshot ID: " + res.SnapshotID)
	}

	if res.DatasetID == "" {
		res.Outcome = OutcomeInert
		return res
	}

	if !e.checkToken(res, req.Token) {
		log.Warn("no authorization token on request")
		return res
	}

	dataset, ok := e.connect(ctx, res, req.Token, log)
	if !ok {
		return res
	}

	// A failed listing is treated as absent: the error is kept and the
	// empty-listing notice follows it.
	files := e.list(ctx, res, dataset, log)
	if len(files) == 0 {
		if res.Outcome != OutcomeError {
			res.Outcome = OutcomeEmpty
		}
		res.notice(LevelInfo, "No files found in this dataset")
		return res
	}

	res.Outcome = OutcomeFiles
	res.Files = files
	res.notice(LevelSuccess, fmt.Sprintf("Found %d files in the dataset", len(files)))
	e.render(res, log)
	return res
}

func (e *Explorer) checkToken(res *Result, token services.Token) bool {
	sec := res.Debug.section("Token Processing")
	if token.Header == "" {
		sec.add(LevelError, "No Authorization header found")
	} else {
		sec.add(LevelSuccess, fmt.Sprintf("Authorization header found (length: %d)", len(token.Header)))
		if token.HasBearerPrefix {
			sec.add(LevelSuccess, "Header has 'Bearer ' prefix")
			sec.add(LevelSuccess, fmt.Sprintf("Extracted token (length: %d)", len(token.Value)))
		} else {
			sec.add(LevelWarning, "Header doesn't start with 'Bearer ', using full header as token")
		}
		sec.code("Token preview: " + token.Preview())
	}

	if token.Present() {
		return true
	}
	res.fail(FailureMissingCredential, "Authorization token not found in request headers.", nil)
	res.notice(LevelInfo, "Make sure the explorer runs behind the authenticating proxy that supplies the Authorization header.")
	return false
}

// connect resolves the dataset and pins the snapshot. Any failure stops the exploration.
func (e *Explorer) connect(ctx context.Context, res *Result, token services.Token, log *zap.Logger) (services.Dataset, bool) {
	sec := res.Debug.section("Client Initialization")
	sec.add(LevelInfo, "Initializing dataset client...")

	upstream := func(err error) (services.Dataset, bool) {
		log.Warn("dataset connection failed", zap.Error(err))
		sec.code(err.Error())
		res.fail(FailureUpstream, "Error connecting to dataset: "+err.Error(), err)
		res.notice(LevelInfo, "Make sure the explorer runs with proper authentication for the datasets service.")
		return nil, false
	}

	client, err := e.factory.NewClient(token.Value)
	if err != nil {
		return upstream(err)
	}
	sec.add(LevelSuccess, "Dataset client initialized")
	sec.add(LevelInfo, fmt.Sprintf("Attempting to get dataset: '%s'", res.DatasetID))

	log.Debug("resolving dataset")
	dataset, err := client.GetDataset(ctx, res.DatasetID)
	if err != nil {
		return upstream(err)
	}
	sec.add(LevelSuccess, fmt.Sprintf("Dataset '%s' retrieved successfully", res.DatasetID))

	if res.SnapshotID != "" {
		log.Debug("pinning snapshot", zap.String("snapshot_id", res.SnapshotID))
		if err := dataset.Update(services.DatasetConfig{SnapshotID: res.SnapshotID}); err != nil {
			return upstream(err)
		}
		res.notice(LevelSuccess, fmt.Sprintf("Connected to dataset '%s' with snapshot '%s'", res.DatasetID, res.SnapshotID))
	} else {
		res.notice(LevelSuccess, fmt.Sprintf("Connected to dataset '%s' (using read/write snapshot)", res.DatasetID))
	}
	return dataset, true
}

// list returns the entries of the pinned snapshot, or nil after recording a listing failure.
func (e *Explorer) list(ctx context.Context, res *Result, dataset services.Dataset, log *zap.Logger) []services.FileEntry {
	log.Debug("listing files", zap.String("snapshot_id", dataset.SnapshotID()))
	files, err := dataset.ListFiles(ctx, "")
	if err != nil {
		log.Warn("listing files failed", zap.Error(err))
		res.fail(FailureListing, "Error listing files: "+err.Error(), err)
		res.Debug.section("List Files Error").code(err.Error())
		return nil
	}

	sec := res.Debug.section("Raw Files Response")
	sec.code(fmt.Sprintf("Type: %T", files))
	sec.code(fmt.Sprintf("Length: %d", len(files)))
	if len(files) > 0 {
		preview := files
		if len(preview) > debugEntryLimit {
			preview = preview[:debugEntryLimit]
		}
		sec.code(fmt.Sprintf("First item type: %T", files[0]))
		sec.code(fmt.Sprintf("First few items: %#v", preview))
	}
	log.Debug("listed files", zap.Int("count", len(files)))
	return files
}

// render derives one numbered line per entry. A failure on any entry
// discards every line built so far and renders all entries raw.
func (e *Explorer) render(res *Result, log *zap.Logger) {
	lines, err := displayLines(res.Files)
	if err == nil {
		res.Lines = lines
		for i, f := range res.Files {
			if i >= debugEntryLimit {
				break
			}
			sec := res.Debug.section(fmt.Sprintf("File %d debug", i+1))
			sec.code(fmt.Sprintf("Type: %T", f))
			sec.code(fmt.Sprintf("Fields: %+v", f))
			sec.code("Raw representation: " + f.GoString())
		}
		return
	}

	log.Warn("display derivation failed, rendering raw entries", zap.Error(err))
	res.fail(FailureRendering, "Error displaying files: "+err.Error(), err)
	res.Debug.section("Display Error").code(err.Error())
	res.Fallback = true
	res.Lines = rawLines(res.Files)
}

func displayLines(files []services.FileEntry) ([]string, error) {
	lines := make([]string, 0, len(files))
	for i, f := range files {
		name, err := f.DisplayName()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, name))
	}
	return lines, nil
}

func rawLines(files []services.FileEntry) []string {
	lines := make([]string, 0, len(files))
	for i, f := range files {
		lines = append(lines, fmt.Sprintf("%d. %#v", i+1, f))
	}
	return lines
}

// maskHeaders renders "Key: value" lines in key order with the Authorization value masked.
func maskHeaders(header http.Header) []string {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(header[k], ", ")
		if strings.EqualFold(k, "Authorization") {
			value = services.MaskSecret(value)
		}
		lines = append(lines, k+": "+value)
	}
	return lines
}
