package main

import (
	"context"

	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/stretchr/testify/mock"
)

// MockDatasetFactory implements services.DatasetClientFactory for testing
type MockDatasetFactory struct {
	mock.Mock
}

func (m *MockDatasetFactory) NewClient(token string) (services.DatasetClient, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.DatasetClient), args.Error(1)
}

// MockDatasetClient implements services.DatasetClient for testing
type MockDatasetClient struct {
	mock.Mock
}

func (m *MockDatasetClient) GetDataset(ctx context.Context, datasetID string) (services.Dataset, error) {
	args := m.Called(ctx, datasetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.Dataset), args.Error(1)
}

// MockDataset implements services.Dataset for testing
type MockDataset struct {
	mock.Mock
}

func (m *MockDataset) ID() string {
	return m.Called().String(0)
}

func (m *MockDataset) SnapshotID() string {
	return m.Called().String(0)
}

func (m *MockDataset) Update(config services.DatasetConfig) error {
	args := m.Called(config)
	return args.Error(0)
}

func (m *MockDataset) ListFiles(ctx context.Context, prefix string) ([]services.FileEntry, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.FileEntry), args.Error(1)
}
