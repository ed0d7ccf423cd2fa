package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ruteri/host-directory/interfaces"
)

// ValidityLayout is the layout of certificate validity bounds in host output.
const ValidityLayout = "Mon Jan 02 15:04:05 2006 UTC"

// X509Parser decodes DER certificates with crypto/x509.
type X509Parser struct{}

var _ interfaces.CertificateParser = X509Parser{}

// Parse extracts subject, issuer, serial number, validity and fingerprints from der.
func (X509Parser) Parse(der []byte) (*interfaces.CertificateInfo, error) {
	cert, err := HostCert(der).GetX509Cert()
	if err != nil {
		return nil, err
	}

	md5Sum := md5.Sum(der)
	sha1Sum := sha1.Sum(der)

	return &interfaces.CertificateInfo{
		Subject:         cert.Subject.String(),
		Issuer:          cert.Issuer.String(),
		SerialNumber:    cert.SerialNumber.String(),
		NotBefore:       cert.NotBefore.UTC(),
		NotAfter:        cert.NotAfter.UTC(),
		MD5Fingerprint:  Fingerprint(md5Sum[:]),
		SHA1Fingerprint: Fingerprint(sha1Sum[:]),
	}, nil
}

// Fingerprint formats a digest as colon-separated uppercase hex pairs.
func Fingerprint(sum []byte) string {
	h := strings.ToUpper(hex.EncodeToString(sum))
	pairs := make([]string, 0, len(sum))
	for i := 0; i < len(h); i += 2 {
		pairs = append(pairs, h[i:i+2])
	}
	return strings.Join(pairs, ":")
}

// FormatValidity renders a validity bound the way host output shows it.
func FormatValidity(t time.Time) string {
	return t.UTC().Format(ValidityLayout)
}

// DecodeCertificate turns a transport-encoded certificate into DER. The value may be
// base64 of DER, base64 of PEM, or PEM text.
func DecodeCertificate(value string) (HostCert, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "-----BEGIN") {
		return NewHostCert([]byte(value))
	}

	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(value), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrInvalidCertificate, err)
	}
	return NewHostCert(raw)
}

// EncodeCertificate returns the transport encoding of a DER certificate.
func EncodeCertificate(der []byte) string {
	return base64.StdEncoding.EncodeToString(der)
}

// SelfSignedCertificate generates a fresh ECDSA key and a self-signed certificate for cn.
// The private key is returned in PEM format next to the DER certificate.
func SelfSignedCertificate(cn string, serial int64, validFor time.Duration) (HostCert, []byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	notBefore := time.Now().UTC().Truncate(time.Second)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"Host Directory"},
		},
		DNSNames:  []string{cn},
		NotBefore: notBefore,
		NotAfter:  notBefore.Add(validFor),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, privateKey.Public(), privateKey)
	if err != nil {
		return nil, nil, err
	}

	privkeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privkeyBytes})
	return HostCert(certDER), keyPEM, nil
}
