package protocol

import (
	"errors"
	"fmt"
)

// MaxTokenLength is the longest token a message may carry.
const MaxTokenLength = 8

var (
	ErrTokenTooLong    = errors.New("protocol: token too long")
	ErrMessageTooShort = errors.New("protocol: message too short")
)

// Marshal serializes a message for the transport:
//
//	1 byte: code
//	1 byte: token length
//	N bytes: token
//	options, then 0xFF and the payload when the payload is not empty
func Marshal(m *Message) ([]byte, error) {
	if len(m.Token) > MaxTokenLength {
		return nil, ErrTokenTooLong
	}
	opts, err := EncodeOptions(m.Options)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2+len(m.Token)+len(opts)+1+len(m.Payload))
	out = append(out, byte(m.Code), byte(len(m.Token)))
	out = append(out, m.Token...)
	out = append(out, opts...)
	if len(m.Payload) > 0 {
		out = append(out, PayloadMarker)
		out = append(out, m.Payload...)
	}
	return out, nil
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(b []byte) (*Message, error) {
	if len(b) < 2 {
		return nil, ErrMessageTooShort
	}
	tokenLen := int(b[1])
	if tokenLen > MaxTokenLength {
		return nil, ErrTokenTooLong
	}
	if len(b) < 2+tokenLen {
		return nil, fmt.Errorf("%w: truncated token", ErrMessageTooShort)
	}
	m := &Message{Code: Code(b[0])}
	if tokenLen > 0 {
		m.Token = append([]byte{}, b[2:2+tokenLen]...)
	}
	opts, payload, err := DecodeOptions(b[2+tokenLen:])
	if err != nil {
		return nil, err
	}
	m.Options = opts
	if len(payload) > 0 {
		m.Payload = append([]byte{}, payload...)
	}
	return m, nil
}
