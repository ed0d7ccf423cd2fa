package storage

import (
	"path/filepath"
	"testing"

	"github.com/ruteri/host-directory/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, uri string) interfaces.StorageBackendLocation {
	t.Helper()
	loc, err := interfaces.NewStorageBackendLocation(uri)
	require.NoError(t, err)
	return loc
}

func TestStoreFactory_StoreFor(t *testing.T) {
	factory := NewStoreFactory(discardLogger())
	dir := t.TempDir()

	tests := []struct {
		name     string
		uri      string
		expected any
		wantErr  bool
	}{
		{name: "memory", uri: "mem://hosts", expected: &MemoryStore{}},
		{name: "file", uri: "file://" + filepath.Join(dir, "store"), expected: &FileStore{}},
		{name: "s3", uri: "s3://AKID:SECRET@bucket/prefix/?region=eu-west-1&endpoint=http://127.0.0.1:9000&pathstyle=true", expected: &S3Store{}},
		{name: "vault", uri: "vault://127.0.0.1:8200/secret/hosts?tls=false", expected: &VaultStore{}},
		{name: "vault without mount", uri: "vault://127.0.0.1:8200", wantErr: true},
		{name: "file without path", uri: "file://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := factory.StoreFor(mustLocation(t, tt.uri))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expected, store)
		})
	}
}

func TestStoreFactory_VaultPaths(t *testing.T) {
	factory := NewStoreFactory(discardLogger())

	store, err := factory.StoreFor(mustLocation(t, "vault://127.0.0.1:8200/kv/host-directory/prod?tls=false"))
	require.NoError(t, err)

	vault := store.(*VaultStore)
	assert.Equal(t, "kv", vault.mountPath)
	assert.Equal(t, "host-directory/prod", vault.dataPath)
	assert.Equal(t, "kv/data/host-directory/prod/entries/a", vault.secretPath("data", "entries/a"))
	assert.Equal(t, "kv/metadata/host-directory/prod/", vault.secretPath("metadata", ""))
}

func TestStoreFactory_S3Credentials(t *testing.T) {
	factory := NewStoreFactory(discardLogger())

	store, err := factory.StoreFor(mustLocation(t, "s3://AKID:SECRET@bucket/prefix/?region=eu-west-1"))
	require.NoError(t, err)

	s3Store := store.(*S3Store)
	assert.Equal(t, "prefix", s3Store.prefix)
	assert.Equal(t, "s3://AKID:***@bucket/prefix?region=eu-west-1", s3Store.LocationURI())
}

func TestStoreFactory_CreateMultiStore(t *testing.T) {
	factory := NewStoreFactory(discardLogger())

	single, err := factory.CreateMultiStore([]interfaces.StorageBackendLocation{mustLocation(t, "mem://a")})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, single)

	multi, err := factory.CreateMultiStore([]interfaces.StorageBackendLocation{
		mustLocation(t, "mem://a"),
		mustLocation(t, "vault://127.0.0.1:8200"),
		mustLocation(t, "mem://b"),
	})
	require.NoError(t, err)
	assert.Equal(t, "multi:[mem://a,mem://b]", multi.LocationURI())

	_, err = factory.CreateMultiStore(nil)
	assert.Error(t, err)
}

func TestNewStorageBackendLocation_Invalid(t *testing.T) {
	_, err := interfaces.NewStorageBackendLocation("ipfs://localhost:5001")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
