package schema

import (
	"fmt"
	"strings"

	"github.com/ruteri/host-directory/interfaces"
)

// ServiceContainer is the location of service entries relative to the base DN.
const ServiceContainer interfaces.EntryID = "cn=services,cn=accounts"

// ServiceObjectClasses are the markers every service entry carries.
var ServiceObjectClasses = []string{"ipaobject", "ipaservice", "pkiuser", "krbprincipalaux", "krbprincipal"}

// HostPrincipalName returns the principal a host is assigned on creation.
func HostPrincipalName(fqdn, realm string) string {
	return ServicePrincipal("host", fqdn, realm)
}

// ServicePrincipal formats service/hostname@realm.
func ServicePrincipal(service, hostname, realm string) string {
	return fmt.Sprintf("%s/%s@%s", service, hostname, realm)
}

// SplitPrincipal parses service/hostname@realm. The realm part is optional.
func SplitPrincipal(principal string) (service, hostname, realm string, err error) {
	name, realm, _ := strings.Cut(principal, "@")
	service, hostname, ok := strings.Cut(name, "/")
	if !ok || service == "" || hostname == "" || strings.Contains(hostname, "/") {
		return "", "", "", &interfaces.ValidationError{Field: "principal", Value: principal, Reason: "expected service/hostname@REALM"}
	}
	return service, hostname, realm, nil
}
