package cryptoutils

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCertificate is returned when certificate bytes cannot be decoded or parsed.
var ErrInvalidCertificate = errors.New("invalid certificate")

// HostCert is a host certificate in DER form.
type HostCert []byte

// NewHostCert creates a certificate object from DER or PEM data with validation.
func NewHostCert(data []byte) (HostCert, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidCertificate, block.Type)
		}
		der = block.Bytes
	}

	if _, err := x509.ParseCertificate(der); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}

	return HostCert(der), nil
}

// Validate checks if the certificate is properly formed.
func (cert HostCert) Validate() error {
	_, err := NewHostCert(cert)
	return err
}

// GetX509Cert returns the parsed X.509 certificate.
func (cert HostCert) GetX509Cert() (*x509.Certificate, error) {
	c, err := x509.ParseCertificate(cert)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return c, nil
}

// PEM returns the certificate in PEM encoding.
func (cert HostCert) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert})
}

// IsExpired checks if the certificate has expired.
func (cert HostCert) IsExpired() (bool, error) {
	x509Cert, err := cert.GetX509Cert()
	if err != nil {
		return false, err
	}
	return x509Cert.NotAfter.Before(time.Now()), nil
}
