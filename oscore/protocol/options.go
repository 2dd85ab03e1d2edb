package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// PayloadMarker separates options from the payload.
const PayloadMarker = 0xff

var (
	ErrMalformedOptions = errors.New("protocol: malformed options")
	ErrOptionTooLarge   = errors.New("protocol: option value too large")
)

const (
	ext8Base  = 13
	ext16Base = 269
	maxExt    = ext16Base + 0xffff
)

func nibble(v int) (n byte, ext []byte) {
	switch {
	case v < ext8Base:
		return byte(v), nil
	case v < ext16Base:
		return 13, []byte{byte(v - ext8Base)}
	default:
		x := v - ext16Base
		return 14, []byte{byte(x >> 8), byte(x)}
	}
}

// EncodeOptions serializes opts in CoAP delta encoding (RFC 7252 section 3.1).
// Options are written in ascending number order; the input slice is not modified.
func EncodeOptions(opts []Option) ([]byte, error) {
	sorted := append([]Option(nil), opts...)
	SortOptions(sorted)

	var b bytes.Buffer
	prev := 0
	for _, o := range sorted {
		delta := int(o.Number) - prev
		if len(o.Value) > maxExt {
			return nil, fmt.Errorf("%w: option %d has %d bytes", ErrOptionTooLarge, o.Number, len(o.Value))
		}
		dn, dext := nibble(delta)
		ln, lext := nibble(len(o.Value))
		b.WriteByte(dn<<4 | ln)
		b.Write(dext)
		b.Write(lext)
		b.Write(o.Value)
		prev = int(o.Number)
	}
	return b.Bytes(), nil
}

func readExt(n byte, data []byte) (int, []byte, error) {
	switch n {
	case 13:
		if len(data) < 1 {
			return 0, nil, ErrMalformedOptions
		}
		return int(data[0]) + ext8Base, data[1:], nil
	case 14:
		if len(data) < 2 {
			return 0, nil, ErrMalformedOptions
		}
		return int(data[0])<<8 | int(data[1]) + ext16Base, data[2:], nil
	case 15:
		return 0, nil, ErrMalformedOptions
	default:
		return int(n), data, nil
	}
}

// DecodeOptions parses options up to the end of data or the payload marker and
// returns them together with the payload that follows the marker.
func DecodeOptions(data []byte) ([]Option, []byte, error) {
	var opts []Option
	number := 0
	for len(data) > 0 {
		head := data[0]
		if head == PayloadMarker {
			if len(data) == 1 {
				return nil, nil, fmt.Errorf("%w: payload marker without payload", ErrMalformedOptions)
			}
			return opts, data[1:], nil
		}
		data = data[1:]

		delta, rest, err := readExt(head>>4, data)
		if err != nil {
			return nil, nil, err
		}
		length, rest, err := readExt(head&0x0f, rest)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) < length {
			return nil, nil, fmt.Errorf("%w: truncated option value", ErrMalformedOptions)
		}
		number += delta
		if number > 0xffff {
			return nil, nil, fmt.Errorf("%w: option number overflow", ErrMalformedOptions)
		}
		opts = append(opts, Option{Number: OptionNumber(number), Value: append([]byte{}, rest[:length]...)})
		data = rest[length:]
	}
	return opts, nil, nil
}
