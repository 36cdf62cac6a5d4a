// Package webdav provides the authenticated WebDAV transport used by the sync engine.
//
// A Client issues exactly four kinds of request against a single origin:
//
//   - LOCK, with a configured request body, returning the opaque lock token
//     found under lockdiscovery/activelock/locktoken/href, or an empty token
//     when the lock was not granted
//   - UNLOCK, presenting the token in the Lock-Token header
//   - GET, returning the raw headers and the UTF-8 body
//   - PUT, presenting the token in a tagged If header
//
// Every request is authenticated with HTTP Digest. There are no retries.
//
// A Prober reports the current ETag of a resource, either from a GET or from
// a Depth 0 PROPFIND.
package webdav
