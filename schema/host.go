package schema

import (
	"strings"

	"github.com/ruteri/host-directory/interfaces"
)

// Public field names of the host entity.
const (
	HostFQDN             = "fqdn"
	HostDescription      = "description"
	HostLocality         = "locality"
	HostLocation         = "location"
	HostPlatform         = "hardwarePlatform"
	HostOSVersion        = "osVersion"
	HostPassword         = "enrollmentPassword"
	HostPrincipal        = "kerberosPrincipalName"
	HostCertificate      = "certificate"
	HostObjectClasses    = "objectClassSet"
	HostManagedBy        = "managedBy"
	HostMemberOf         = "memberOf"
	HostEnrolledBy       = "enrolledBy"
	HostUniqueID         = "uniqueId"
	HostHasKeytab        = "hasKeytab"
	HostSubject          = "subject"
	HostSerialNumber     = "serialNumber"
	HostIssuer           = "issuer"
	HostValidNotBefore   = "validNotBefore"
	HostValidNotAfter    = "validNotAfter"
	HostMD5Fingerprint   = "md5Fingerprint"
	HostSHA1Fingerprint  = "sha1Fingerprint"
	HostRevocationReason = "revocationReason"
)

// Backend attribute names used by the host rules.
const (
	AttrFQDN         = "fqdn"
	AttrCN           = "cn"
	AttrShortName    = "serverhostname"
	AttrLocality     = "l"
	AttrPassword     = "userpassword"
	AttrPrincipal    = "krbprincipalname"
	AttrPrincipalKey = "krbprincipalkey"
	AttrKeyTimestamp = "krblastpwdchange"
	AttrCertificate  = "usercertificate"
	AttrObjectClass  = "objectclass"
	AttrManagedBy    = "managedby"
	AttrMemberOf     = "memberof"
	AttrEnrolledBy   = "enrolledby"
	AttrUniqueID     = "ipauniqueid"
	AttrHostLocation = "nshostlocation"
	AttrHardware     = "nshardwareplatform"
	AttrOSVersion    = "nsosversion"
	AttrDescription  = "description"
)

var (
	// HostObjectClassMarkers are the markers every host entry carries.
	HostObjectClassMarkers = []string{"ipaobject", "nshost", "ipahost", "pkiuser", "ipaservice"}

	// KerberosObjectClasses enable principal storage on an entry.
	KerberosObjectClasses = []string{"krbprincipalaux", "krbprincipal"}
)

// HostContainer is the location of host entries relative to the base DN.
const HostContainer interfaces.EntryID = "cn=computers,cn=accounts"

// NewHostSchema declares the host entity below baseDN.
func NewHostSchema(baseDN interfaces.EntryID) (*EntitySchema, error) {
	s, err := NewEntitySchema("host", "hosts", HostContainer, baseDN,
		Field{
			Name:       HostFQDN,
			Attribute:  AttrFQDN,
			Label:      "Host name",
			PrimaryKey: true,
			Required:   true,
			Normalizer: func(v string) string { return strings.ToLower(strings.TrimSpace(v)) },
			Validate:   "required,contains=.",
			Message:    "Fully-qualified hostname required",
		},
		Field{Name: HostDescription, Attribute: AttrDescription, Label: "Description", Validate: "max=1024"},
		Field{Name: HostLocality, Attribute: AttrLocality, Label: "Locality", Validate: "max=256"},
		Field{Name: HostLocation, Attribute: AttrHostLocation, Label: "Location", Validate: "max=256"},
		Field{Name: HostPlatform, Attribute: AttrHardware, Label: "Platform", Validate: "max=256"},
		Field{Name: HostOSVersion, Attribute: AttrOSVersion, Label: "Operating system", Validate: "max=256"},
		Field{
			Name:      HostPassword,
			Attribute: AttrPassword,
			Label:     "User password",
			Sensitive: true,
			NoSearch:  true,
			Validate:  "min=1",
		},
		Field{
			Name:         HostCertificate,
			Attribute:    AttrCertificate,
			Label:        "Certificate",
			Binary:       true,
			Immutability: WriteOnce,
			NoSearch:     true,
			Normalizer:   func(v string) string { return strings.Join(strings.Fields(v), "") },
			Validate:     "base64",
			Message:      "Base-64 encoded certificate required",
		},
		Field{
			Name:         HostPrincipal,
			Attribute:    AttrPrincipal,
			Label:        "Principal name",
			Immutability: WriteOnce,
			NoCreate:     true,
			NoSearch:     true,
			Validate:     "contains=@",
		},
		Field{Name: HostObjectClasses, Attribute: AttrObjectClass, Label: "Object classes", Immutability: Derived},
		Field{Name: HostManagedBy, Attribute: AttrManagedBy, Label: "Managed by", Immutability: Derived},
		Field{Name: HostMemberOf, Attribute: AttrMemberOf, Label: "Member of", Immutability: Derived},
		Field{Name: HostEnrolledBy, Attribute: AttrEnrolledBy, Label: "Enrolled by", Immutability: Derived},
		Field{Name: HostUniqueID, Attribute: AttrUniqueID, Label: "Unique ID", Immutability: Derived},
		Field{Name: HostHasKeytab, Label: "Keytab", Immutability: Derived, Boolean: true},
		Field{Name: HostSubject, Label: "Subject", Immutability: Derived},
		Field{Name: HostSerialNumber, Label: "Serial Number", Immutability: Derived},
		Field{Name: HostIssuer, Label: "Issuer", Immutability: Derived},
		Field{Name: HostValidNotBefore, Label: "Not Before", Immutability: Derived},
		Field{Name: HostValidNotAfter, Label: "Not After", Immutability: Derived},
		Field{Name: HostMD5Fingerprint, Label: "Fingerprint (MD5)", Immutability: Derived},
		Field{Name: HostSHA1Fingerprint, Label: "Fingerprint (SHA1)", Immutability: Derived},
		Field{Name: HostRevocationReason, Label: "Revocation reason", Immutability: Derived},
	)
	if err != nil {
		return nil, err
	}

	s.ObjectClasses = HostObjectClassMarkers
	s.ShortNameAttribute = AttrShortName
	s.SearchAttributes = []string{
		AttrFQDN, AttrDescription, AttrLocality, AttrHostLocation, AttrPrincipal, AttrHardware, AttrOSVersion,
	}
	s.DefaultAttributes = []string{
		AttrFQDN, AttrDescription, AttrLocality, AttrHostLocation, AttrPrincipal, AttrHardware, AttrOSVersion,
		AttrCertificate, AttrMemberOf, AttrKeyTimestamp,
	}
	return s, nil
}
