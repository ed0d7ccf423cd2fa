package pipeline

import (
	"context"
	"io"
	"log/slog"

	"github.com/ruteri/host-directory/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock implementation of interfaces.DirectoryBackend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) GetEntry(ctx context.Context, id interfaces.EntryID, attrs []string) (*interfaces.Entry, error) {
	args := m.Called(ctx, id, attrs)
	entry, _ := args.Get(0).(*interfaces.Entry)
	return entry, args.Error(1)
}

func (m *MockBackend) FindByAttribute(ctx context.Context, attr, value string, objectClasses []string, attrs []string, base interfaces.EntryID) (*interfaces.Entry, error) {
	args := m.Called(ctx, attr, value, objectClasses, attrs, base)
	entry, _ := args.Get(0).(*interfaces.Entry)
	return entry, args.Error(1)
}

func (m *MockBackend) Search(ctx context.Context, req interfaces.SearchRequest) (*interfaces.SearchPage, error) {
	args := m.Called(ctx, req)
	page, _ := args.Get(0).(*interfaces.SearchPage)
	return page, args.Error(1)
}

func (m *MockBackend) CreateEntry(ctx context.Context, entry *interfaces.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockBackend) UpdateEntry(ctx context.Context, id interfaces.EntryID, attrs interfaces.Attributes) error {
	args := m.Called(ctx, id, attrs)
	return args.Error(0)
}

func (m *MockBackend) DeleteEntry(ctx context.Context, id interfaces.EntryID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) RemoveKeyMaterial(ctx context.Context, id interfaces.EntryID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
