package interfaces

import (
	"context"
	"time"
)

// CertificateInfo holds the fields derived from a DER encoded certificate.
type CertificateInfo struct {
	Subject         string
	Issuer          string
	SerialNumber    string
	NotBefore       time.Time
	NotAfter        time.Time
	MD5Fingerprint  string
	SHA1Fingerprint string
}

// CertificateParser decodes DER certificates.
type CertificateParser interface {
	Parse(der []byte) (*CertificateInfo, error)
}

// NameChecker verifies that a host name is bound in the naming system.
type NameChecker interface {
	Exists(ctx context.Context, fqdn string) (bool, error)
}

// ServicePage is one page of service principals returned by a ServiceCatalog.
type ServicePage struct {
	Principals []string
	Cursor     string
	Truncated  bool
}

// ServiceCatalog finds and removes the service entries that depend on a host.
type ServiceCatalog interface {
	// FindServices searches services matching term, continuing from cursor.
	// Returns an empty page when nothing matches.
	FindServices(ctx context.Context, term string, cursor string) (*ServicePage, error)

	// DeleteService removes the service entry of principal.
	DeleteService(ctx context.Context, principal string) error
}
