// Package directory is the reference DirectoryBackend: entries live as JSON
// documents in an interfaces.EntryStore, one key per distinguished name.
//
// The backend assigns a unique id to new entries, keeps enrollment passwords
// only as bcrypt hashes, hides raw principal keys from reads and evaluates
// search filters in memory. Searches return pages ordered by identifier and
// continue from an opaque cursor.
//
// ServiceCatalog stores the service entries that depend on hosts and is what
// the host delete cascade walks.
package directory
