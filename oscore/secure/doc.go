// Package secure turns plain messages into OSCORE-protected ones and back.
//
// Protect allocates a sender sequence number, derives the per-message nonce,
// authenticates the class I options and encrypts the class E options together
// with the code and payload. Unprotect resolves the security context from the
// OSCORE option or the transport peer, authenticates the ciphertext, runs the
// replay check and rebuilds the original message.
package secure
