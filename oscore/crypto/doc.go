// Package crypto provides the cryptographic primitives used by OSCORE security contexts.
//
// Contents:
//   - A registry of COSE AEAD algorithms (AES-CCM, AES-GCM, ChaCha20-Poly1305)
//     with their key, nonce and tag sizes
//   - AEAD construction for a registered algorithm and key
//   - HKDF-SHA256 and HKDF-SHA512 key derivation
//
// Algorithm identifiers are the integer values registered by COSE (RFC 9053),
// so that two peers configured from the same provisioning data agree on the
// wire-level algorithm without extra negotiation.
package crypto
