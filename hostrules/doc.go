// Package hostrules holds the lifecycle rules of host entries as a strategy
// table of pipeline hooks:
//
//   - add checks the name in DNS unless forced, derives cn and serverhostname,
//     assigns host/<fqdn>@<realm> unless a one-time password defers it, and
//     marks the host as managing itself;
//   - mod refuses to change a principal or certificate that is already set and
//     decodes incoming certificates to DER;
//   - del removes the host's service entries first;
//   - find maps public names in filters and attribute lists;
//   - show derives hasKeytab and the certificate fields;
//   - disable removes the principal key.
package hostrules
