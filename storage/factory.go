package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/host-directory/interfaces"
)

// StoreFactory creates entry stores from location URIs and combines them into
// replicated stores.
type StoreFactory struct {
	log *slog.Logger
}

var _ interfaces.EntryStoreFactory = (*StoreFactory)(nil)

// NewStoreFactory creates a new factory instance.
func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreFactory{log: logger}
}

// StoreFor creates an entry store from a location.
//
// Supported schemes:
//   - mem://name - In-process memory, lost on exit
//   - file:///path - Local filesystem storage
//   - s3://bucket/prefix - Amazon S3 or compatible object storage
//   - vault://host:port/mount/path - HashiCorp Vault KV v2
func (sf *StoreFactory) StoreFor(location interfaces.StorageBackendLocation) (interfaces.EntryStore, error) {
	switch strings.ToLower(location.Scheme) {
	case "mem":
		return NewMemoryStore(location.Host, sf.log), nil
	case "file":
		return sf.createFileStore(location)
	case "s3":
		return sf.createS3Store(location)
	case "vault":
		return sf.createVaultStore(location)
	default:
		return nil, fmt.Errorf("%w: unsupported store scheme: %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiStore creates a replicated store from a list of locations.
// Locations that fail to open are logged and skipped. Returns an error if none could be created.
func (sf *StoreFactory) CreateMultiStore(locations []interfaces.StorageBackendLocation) (interfaces.EntryStore, error) {
	stores := make([]interfaces.EntryStore, 0, len(locations))

	for _, loc := range locations {
		store, err := sf.StoreFor(loc)
		if err != nil {
			sf.log.Warn("Failed to create entry store",
				"err", err,
				slog.String("locationURI", loc.String()))
			continue
		}
		stores = append(stores, store)
	}

	if len(stores) == 0 {
		return nil, fmt.Errorf("no valid entry stores created")
	}
	if len(stores) == 1 {
		return stores[0], nil
	}

	return NewMultiStore(stores, sf.log), nil
}

// createFileStore handles file:///absolute/path/ and file://./relative/path/.
func (sf *StoreFactory) createFileStore(loc interfaces.StorageBackendLocation) (interfaces.EntryStore, error) {
	sf.log.Debug("Creating file store", slog.String("uri", loc.String()))

	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, loc.String())
	}

	return NewFileStore(path, sf.log)
}

// createS3Store handles s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=...&pathstyle=true.
func (sf *StoreFactory) createS3Store(loc interfaces.StorageBackendLocation) (interfaces.EntryStore, error) {
	sf.log.Debug("Creating S3 store", slog.String("bucket", loc.Host))

	opts := S3Options{
		Bucket:    loc.Host,
		Prefix:    strings.TrimPrefix(loc.Path, "/"),
		Region:    loc.GetParam("region"),
		Endpoint:  loc.GetParam("endpoint"),
		PathStyle: loc.GetParamBool("pathstyle"),
	}
	if loc.Auth != "" {
		accessKey, secretKey, _ := strings.Cut(loc.Auth, ":")
		opts.AccessKey = accessKey
		opts.SecretKey = secretKey
	}

	return NewS3Store(opts, sf.log)
}

// createVaultStore handles vault://host:port/mount/path?tls=false. The first path
// segment is the KV v2 mount, the rest is the data path.
func (sf *StoreFactory) createVaultStore(loc interfaces.StorageBackendLocation) (interfaces.EntryStore, error) {
	sf.log.Debug("Creating Vault store", slog.String("uri", loc.String()))

	mount, dataPath, _ := strings.Cut(strings.TrimPrefix(loc.Path, "/"), "/")
	if loc.Host == "" || mount == "" {
		return nil, fmt.Errorf("%w: vault URI needs host and mount: %s", interfaces.ErrInvalidLocationURI, loc.String())
	}

	scheme := "https"
	if loc.GetParam("tls") == "false" {
		scheme = "http"
	}

	return NewVaultStore(scheme+"://"+loc.Host, mount, dataPath, nil, sf.log)
}
