// Package storage provides key-value entry stores with pluggable backends.
//
// The reference directory keeps every entry as one serialized value in an
// interfaces.EntryStore. Stores are created from location URIs:
//
//	mem://name
//	file:///var/lib/host-directory/
//	s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=http://minio:9000&pathstyle=true
//	vault://vault.example.com:8200/secret/host-directory?tls=true
//
// Keys are slash-separated paths. Each backend maps them onto its own
// namespace: a directory tree, an object key prefix, or a KV v2 path.
//
// # Replication
//
// MultiStore writes to every available store and reads from the first store
// that has the key, so a directory can be mirrored, for example to a local
// file store and to S3:
//
//	factory := storage.NewStoreFactory(logger)
//	store, err := factory.CreateMultiStore(locations)
//	if err != nil {
//	    log.Fatalf("Failed to create entry store: %v", err)
//	}
package storage
