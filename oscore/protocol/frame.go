package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MessageType distinguishes frames on a stream.
type MessageType uint8

const (
	MessageTypeRequest  MessageType = 1
	MessageTypeResponse MessageType = 2
)

func (t MessageType) valid() bool {
	return t == MessageTypeRequest || t == MessageTypeResponse
}

const (
	// MaxFramePayload limits a single frame payload.
	MaxFramePayload = 1 << 20 // 1 MiB
)

var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
	ErrInvalidType   = errors.New("protocol: invalid frame type")
)

// Frame is the wire container for one serialized message.
// Format:
//
//	1 byte: type
//	4 bytes: payload length (big endian)
//	N bytes: payload
type Frame struct {
	Type    MessageType
	Payload []byte
}

func WriteFrame(w io.Writer, f Frame) error {
	if !f.Type.valid() {
		return ErrInvalidType
	}
	if len(f.Payload) > MaxFramePayload {
		return ErrFrameTooLarge
	}

	buf := make([]byte, 5+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(f.Payload)))
	copy(buf[5:], f.Payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads exactly one frame; it never consumes bytes past it.
func ReadFrame(r io.Reader) (Frame, error) {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Frame{}, err
	}
	mt := MessageType(head[0])
	if !mt.valid() {
		return Frame{}, ErrInvalidType
	}
	payloadLen := binary.BigEndian.Uint32(head[1:])
	if payloadLen > MaxFramePayload {
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameTooLarge, payloadLen)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{Type: mt, Payload: payload}, nil
}

// WriteMessage marshals m and writes it as a frame of type t.
func WriteMessage(w io.Writer, t MessageType, m *Message) error {
	b, err := Marshal(m)
	if err != nil {
		return err
	}
	return WriteFrame(w, Frame{Type: t, Payload: b})
}

// ReadMessage reads a frame and unmarshals its payload.
func ReadMessage(r io.Reader) (MessageType, *Message, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return 0, nil, err
	}
	m, err := Unmarshal(f.Payload)
	if err != nil {
		return 0, nil, err
	}
	return f.Type, m, nil
}
