// Package cryptoutils provides the certificate handling used by host entries.
//
// Certificates travel base64-encoded (DER or PEM) in write payloads and are
// stored as raw DER. X509Parser implements interfaces.CertificateParser and
// derives the descriptive fields shown for a host:
//
//   - Subject and issuer in RFC 2253 form
//   - Decimal serial number
//   - Validity bounds
//   - MD5 and SHA1 fingerprints as colon-separated uppercase hex
//
// # Usage Example
//
//	der, err := cryptoutils.DecodeCertificate(payloadValue)
//	if err != nil {
//	    return err
//	}
//	info, err := cryptoutils.X509Parser{}.Parse(der)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(info.SerialNumber)
package cryptoutils
