package hostrules

import (
	"context"
	"io"
	"log/slog"

	"github.com/ruteri/host-directory/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockNameChecker is a mock implementation of interfaces.NameChecker.
type MockNameChecker struct {
	mock.Mock
}

func (m *MockNameChecker) Exists(ctx context.Context, fqdn string) (bool, error) {
	args := m.Called(ctx, fqdn)
	return args.Bool(0), args.Error(1)
}

// MockServiceCatalog is a mock implementation of interfaces.ServiceCatalog.
type MockServiceCatalog struct {
	mock.Mock
}

func (m *MockServiceCatalog) FindServices(ctx context.Context, term string, cursor string) (*interfaces.ServicePage, error) {
	args := m.Called(ctx, term, cursor)
	page, _ := args.Get(0).(*interfaces.ServicePage)
	return page, args.Error(1)
}

func (m *MockServiceCatalog) DeleteService(ctx context.Context, principal string) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
