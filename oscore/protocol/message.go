package protocol

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// Option is a single option instance. Class overrides the table classification
// when it is not ClassDefault.
type Option struct {
	Number OptionNumber
	Value  []byte
	Class  Class
}

// EffectiveClass resolves the protection class of the option.
func (o Option) EffectiveClass() Class {
	if o.Class != ClassDefault {
		return o.Class
	}
	return o.Number.DefaultClass()
}

// Message is the structured message handed over by the messaging layer.
type Message struct {
	Code    Code
	Token   []byte
	Options []Option
	Payload []byte
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	out := &Message{
		Code:    m.Code,
		Token:   cloneBytes(m.Token),
		Payload: cloneBytes(m.Payload),
	}
	if m.Options != nil {
		out.Options = make([]Option, len(m.Options))
		for i, o := range m.Options {
			out.Options[i] = Option{Number: o.Number, Value: cloneBytes(o.Value), Class: o.Class}
		}
	}
	return out
}

// Option returns the value of the first option with number n.
func (m *Message) Option(n OptionNumber) ([]byte, bool) {
	for _, o := range m.Options {
		if o.Number == n {
			return o.Value, true
		}
	}
	return nil, false
}

// SetOption replaces every option with number n by a single one.
func (m *Message) SetOption(n OptionNumber, value []byte) {
	m.RemoveOption(n)
	m.AddOption(n, value)
}

// AddOption appends an option, keeping the list ordered by number.
func (m *Message) AddOption(n OptionNumber, value []byte) {
	m.Options = append(m.Options, Option{Number: n, Value: value})
	SortOptions(m.Options)
}

func (m *Message) RemoveOption(n OptionNumber) {
	kept := m.Options[:0]
	for _, o := range m.Options {
		if o.Number != n {
			kept = append(kept, o)
		}
	}
	m.Options = kept
}

// AddURIPath appends one Uri-Path option per segment.
func (m *Message) AddURIPath(segments ...string) {
	for _, s := range segments {
		m.AddOption(URIPath, []byte(s))
	}
}

// URIPath joins the Uri-Path options with '/'.
func (m *Message) URIPath() string {
	var b bytes.Buffer
	for _, o := range m.Options {
		if o.Number == URIPath {
			b.WriteByte('/')
			b.Write(o.Value)
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// SetUintOption stores v as a minimal big-endian unsigned integer option.
func (m *Message) SetUintOption(n OptionNumber, v uint32) {
	m.SetOption(n, EncodeUint(uint64(v)))
}

// EncodeUint returns the minimal big-endian encoding of v (empty for zero).
func EncodeUint(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	return append([]byte{}, buf[i:]...)
}

// DecodeUint is the inverse of EncodeUint.
func DecodeUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// SortOptions orders options by number, keeping the relative order of repeated options.
func SortOptions(opts []Option) {
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Number < opts[j].Number })
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
