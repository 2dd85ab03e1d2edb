// Package replay provides the receiver-side anti-replay window of a security context.
//
// The window is anchored at the highest sequence number accepted from a sender and
// remembers which of the preceding W sequence numbers have already been accepted.
// It must only be consulted after the enclosed message has been authenticated, so
// that a forged sequence number can never move the window.
package replay
