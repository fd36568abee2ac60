package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockFactory struct{ mock.Mock }

func (m *mockFactory) NewClient(token string) (services.DatasetClient, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.DatasetClient), args.Error(1)
}

type mockClient struct{ mock.Mock }

func (m *mockClient) GetDataset(ctx context.Context, id string) (services.Dataset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.Dataset), args.Error(1)
}

type mockDataset struct{ mock.Mock }

func (m *mockDataset) ID() string         { return "ds-1" }
func (m *mockDataset) SnapshotID() string { return "" }

func (m *mockDataset) Update(cfg services.DatasetConfig) error {
	return m.Called(cfg).Error(0)
}

func (m *mockDataset) ListFiles(ctx context.Context, prefix string) ([]services.FileEntry, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.FileEntry), args.Error(1)
}

func bearer(value string) services.Token {
	return services.ExtractBearerToken("Bearer " + value)
}

// wired returns an explorer whose factory resolves "ds-1" to dataset.
func wired(dataset *mockDataset) (*Explorer, *mockFactory, *mockClient) {
	factory := new(mockFactory)
	client := new(mockClient)
	factory.On("NewClient", "abc123").Return(client, nil)
	client.On("GetDataset", mock.Anything, "ds-1").Return(dataset, nil)
	return New(factory, zap.NewNop()), factory, client
}

func threeFiles() []services.FileEntry {
	return []services.FileEntry{
		{Name: "a.csv", Path: "a.csv"},
		{Name: "b.csv", Path: "b.csv"},
		{Name: "c.csv", Path: "c.csv"},
	}
}

func TestExplore_EmptyDatasetIDIsInert(t *testing.T) {
	factory := new(mockFactory)
	e := New(factory, nil)

	for _, id := range []string{"", "   "} {
		res := e.Explore(context.Background(), Request{DatasetID: id, Token: bearer("abc123")})

		assert.Equal(t, OutcomeInert, res.Outcome)
		assert.Empty(t, res.Failures)
		assert.Empty(t, res.Lines)
	}
	factory.AssertNotCalled(t, "NewClient", mock.Anything)
}

func TestExplore_MissingTokenTakesCredentialPath(t *testing.T) {
	factory := new(mockFactory)
	e := New(factory, nil)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1"})

	assert.Equal(t, OutcomeError, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, FailureMissingCredential, res.Failures[0].Kind)
	assert.Equal(t, "Authorization token not found in request headers.", res.Failures[0].Message)
	factory.AssertNotCalled(t, "NewClient", mock.Anything)
}

func TestExplore_BareHeaderUsedVerbatim(t *testing.T) {
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return([]services.FileEntry{}, nil)
	factory := new(mockFactory)
	client := new(mockClient)
	factory.On("NewClient", "abc123").Return(client, nil)
	client.On("GetDataset", mock.Anything, "ds-1").Return(dataset, nil)

	res := New(factory, nil).Explore(context.Background(), Request{
		DatasetID: "ds-1",
		Token:     services.ExtractBearerToken("abc123"),
	})

	assert.Equal(t, OutcomeEmpty, res.Outcome)
	factory.AssertExpectations(t)
}

func TestExplore_ResolutionFailureStopsEverything(t *testing.T) {
	dataset := new(mockDataset)
	factory := new(mockFactory)
	client := new(mockClient)
	factory.On("NewClient", "abc123").Return(client, nil)
	client.On("GetDataset", mock.Anything, "ds-1").Return(nil, errors.New("dataset not found: ds-1"))

	res := New(factory, nil).Explore(context.Background(), Request{
		DatasetID:  "ds-1",
		SnapshotID: "snap-2",
		Token:      bearer("abc123"),
	})

	assert.Equal(t, OutcomeError, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, FailureUpstream, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Message, "dataset not found: ds-1")
	assert.Empty(t, res.Lines)
	dataset.AssertNotCalled(t, "Update", mock.Anything)
	dataset.AssertNotCalled(t, "ListFiles", mock.Anything, mock.Anything)
}

func TestExplore_FactoryFailureIsUpstream(t *testing.T) {
	factory := new(mockFactory)
	factory.On("NewClient", "abc123").Return(nil, errors.New("bad host"))

	res := New(factory, nil).Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Error connecting to dataset: bad host", res.Failures[0].Message)
	assert.True(t, res.Failed(FailureUpstream))
}

func TestExplore_EmptyListing(t *testing.T) {
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return([]services.FileEntry{}, nil)
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	assert.Equal(t, OutcomeEmpty, res.Outcome)
	assert.Empty(t, res.Lines)
	assert.Empty(t, res.Failures)
	assert.Contains(t, res.Notices, Notice{Level: LevelInfo, Text: "No files found in this dataset"})
}

func TestExplore_ListsFilesInOrder(t *testing.T) {
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(threeFiles(), nil)
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	assert.Equal(t, OutcomeFiles, res.Outcome)
	assert.Equal(t, []string{"1. a.csv", "2. b.csv", "3. c.csv"}, res.Lines)
	assert.False(t, res.Fallback)
	assert.Contains(t, res.Notices, Notice{Level: LevelSuccess, Text: "Found 3 files in the dataset"})
	assert.Contains(t, res.Notices, Notice{Level: LevelSuccess, Text: "Connected to dataset 'ds-1' (using read/write snapshot)"})
	dataset.AssertNotCalled(t, "Update", mock.Anything)
}

func TestExplore_SnapshotPinnedOnceBeforeListing(t *testing.T) {
	dataset := new(mockDataset)
	var order []string
	dataset.On("Update", services.DatasetConfig{SnapshotID: "snap-2"}).
		Run(func(mock.Arguments) { order = append(order, "update") }).
		Return(nil).Once()
	dataset.On("ListFiles", mock.Anything, "").
		Run(func(mock.Arguments) { order = append(order, "list") }).
		Return(threeFiles(), nil)
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", SnapshotID: "snap-2", Token: bearer("abc123")})

	assert.Equal(t, []string{"update", "list"}, order)
	dataset.AssertNumberOfCalls(t, "Update", 1)
	assert.Contains(t, res.Notices, Notice{Level: LevelSuccess, Text: "Connected to dataset 'ds-1' with snapshot 'snap-2'"})
}

func TestExplore_SnapshotPinFailureIsUpstream(t *testing.T) {
	dataset := new(mockDataset)
	dataset.On("Update", mock.Anything).Return(services.ErrSnapshotNotFound)
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", SnapshotID: "nope", Token: bearer("abc123")})

	assert.True(t, res.Failed(FailureUpstream))
	assert.True(t, errors.Is(res.Err(), services.ErrSnapshotNotFound))
	dataset.AssertNotCalled(t, "ListFiles", mock.Anything, mock.Anything)
}

func TestExplore_ListingFailure(t *testing.T) {
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(nil, errors.New("timeout"))
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	assert.Equal(t, OutcomeError, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, FailureListing, res.Failures[0].Kind)
	assert.Equal(t, "Error listing files: timeout", res.Failures[0].Message)
	assert.Contains(t, res.Notices, Notice{Level: LevelInfo, Text: "No files found in this dataset"})
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Lines)
}

func TestExplore_NamelessEntryUsesStringForm(t *testing.T) {
	files := []services.FileEntry{{Name: "a.csv"}, {Size: 7}, {Name: "c.csv"}}
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(files, nil)
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	assert.Equal(t, OutcomeFiles, res.Outcome)
	assert.False(t, res.Fallback)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []string{
		"1. a.csv",
		`2. FileEntry{Name:"", Path:"", Size:7, ContentType:""}`,
		"3. c.csv",
	}, res.Lines)
}

func TestExplore_RenderingFailureFallsBackToRawForAllEntries(t *testing.T) {
	files := threeFiles()
	files[2] = services.FileEntry{Name: "c\xff.csv", Size: 7}
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(files, nil)
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	assert.Equal(t, OutcomeFiles, res.Outcome)
	assert.True(t, res.Fallback)
	assert.True(t, res.Failed(FailureRendering))
	require.Len(t, res.Lines, 3)
	assert.Equal(t, `1. FileEntry{Name:"a.csv", Path:"a.csv", Size:0, ContentType:""}`, res.Lines[0])
	assert.True(t, strings.HasPrefix(res.Lines[2], "3. FileEntry{"))
}

func TestExplore_DebugMasksAuthorization(t *testing.T) {
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(threeFiles(), nil)
	e, _, _ := wired(dataset)

	header := http.Header{}
	header.Set("Authorization", "Bearer abc123")
	header.Set("X-Domino-Project", "quick-start")

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123"), Header: header})

	assert.Equal(t, []string{"Authorization: Beare...", "X-Domino-Project: quick-start"}, res.Debug.Headers)
	for _, sec := range res.Debug.Sections {
		for _, step := range sec.Steps {
			assert.NotContains(t, step.Text, "Bearer abc123")
		}
	}
}

func TestExplore_DebugDetailsFirstThreeEntries(t *testing.T) {
	files := append(threeFiles(), services.FileEntry{Name: "d.csv"})
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(files, nil)
	e, _, _ := wired(dataset)

	res := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	var titles []string
	for _, sec := range res.Debug.Sections {
		titles = append(titles, sec.Title)
	}
	assert.Contains(t, titles, "File 3 debug")
	assert.NotContains(t, titles, "File 4 debug")
	require.Len(t, res.Lines, 4)
}

func TestExplore_NeverLogsToken(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(nil, errors.New("timeout"))
	factory := new(mockFactory)
	client := new(mockClient)
	factory.On("NewClient", "secret-token-value").Return(client, nil)
	client.On("GetDataset", mock.Anything, "ds-1").Return(dataset, nil)

	New(factory, zap.New(core)).Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("secret-token-value")})

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, "secret-token-value")
		for _, v := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(v), "secret-token-value")
		}
	}
}

func TestExplore_IndependentResults(t *testing.T) {
	dataset := new(mockDataset)
	dataset.On("ListFiles", mock.Anything, "").Return(threeFiles(), nil)
	e, _, _ := wired(dataset)

	first := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})
	second := e.Explore(context.Background(), Request{DatasetID: "ds-1", Token: bearer("abc123")})

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Lines, second.Lines)
}
