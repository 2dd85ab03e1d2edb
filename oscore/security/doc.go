// Package security implements OSCORE security contexts.
//
// A Context is derived once from a master secret, master salt and the pair of
// sender/recipient identifiers (RFC 8613 section 3). Its keys and common IV never
// change afterwards; the only mutable state is the sender sequence number, which
// is allocated atomically and never wraps, and the receiver replay window.
//
// Contexts that deliberately violate these rules (replaced keys, a forced sender
// sequence number) can only be produced by a Builder and are flagged as tampered.
// They exist for fault-injection tests and interop checks.
package security
