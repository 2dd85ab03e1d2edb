// Package oscore provides object security for CoAP-style request/response
// messages in the manner of RFC 8613 (OSCORE).
//
// Security contexts are derived from a pre-shared master secret (package
// security), registered in a context store (package store/memory) and used by
// package secure to protect and unprotect individual messages. Endpoint carries
// protected messages over QUIC and is the place where failures are logged,
// counted and turned into error responses.
package oscore
