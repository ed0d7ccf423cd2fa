// Package interfaces defines the contracts between the host pipeline and its
// collaborators, separating interface definitions from their implementations.
//
// # Directory
//
//   - DirectoryBackend: fetch, lookup by secondary attribute, paginated search,
//     create/update/delete and key material removal over backend attribute names
//   - EntryStore: byte-level persistence used by the reference directory
//
// # Collaborators
//
//   - CertificateParser: decodes DER certificates into CertificateInfo
//   - NameChecker: naming-system existence check consulted by host-add
//   - ServiceCatalog: dependent service search and removal for the delete cascade
//
// # Error Types
//
// Every failure maps onto a sentinel that callers match with errors.Is:
//
//   - ErrValidation: payload rejected by schema rules (ValidationError)
//   - ErrNotFound: missing key, dependent entry or key material (NotFoundError)
//   - ErrImmutable: write-once field already set (ImmutabilityError)
//   - ErrDuplicate: certificate already present (DuplicateError)
//   - ErrDependencyCheck: naming-system check failed (DependencyError)
//   - ErrBackend: failure surfaced unmodified from the directory (BackendError)
package interfaces
