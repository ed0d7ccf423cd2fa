// Command hostctl manages host entries in a directory kept in one or more entry
// stores (memory, local files, S3 or Vault).
//
// Hosts are added, modified, shown, searched, disabled and deleted through the
// host-* commands, and host-enroll completes an enrollment started with a
// one-time password; service-add and service-find manage the service principals
// that are removed together with their host. Results are written to stdout as
// JSON or YAML and failures map to distinct exit codes:
//
//	1 backend failure
//	2 invalid input
//	3 entry or key not found
//	4 write-once field already set
//	5 DNS check failed
package main
