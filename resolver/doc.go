// Package resolver checks that host names exist in DNS before a host entry is
// created for them.
//
// DNSChecker sends A and AAAA queries to a single recursive server, normally
// the first nameserver of /etc/resolv.conf. A name exists when either query
// returns an address record. NXDOMAIN and empty answers mean the name does
// not exist; any other response code is reported as an error so that callers
// can tell an unreachable resolver from a missing name.
package resolver
