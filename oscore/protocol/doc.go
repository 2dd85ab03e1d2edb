// Package protocol contains the message abstraction exchanged with the
// surrounding CoAP-style messaging layer: codes, options tagged with their
// protection class, tokens and payloads, together with the option codec used for
// OSCORE plaintexts and the frame format used by the transport.
package protocol
