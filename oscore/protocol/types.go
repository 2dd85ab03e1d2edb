package protocol

import "fmt"

// Code is a CoAP method or response code (class.detail packed into one byte).
type Code uint8

const (
	CodeEmpty  Code = 0x00
	CodeGET    Code = 0x01
	CodePOST   Code = 0x02
	CodePUT    Code = 0x03
	CodeDELETE Code = 0x04
	CodeFETCH  Code = 0x05

	CodeCreated            Code = 0x41
	CodeDeleted            Code = 0x42
	CodeValid              Code = 0x43
	CodeChanged            Code = 0x44
	CodeContent            Code = 0x45
	CodeBadRequest         Code = 0x80
	CodeUnauthorized       Code = 0x81
	CodeBadOption          Code = 0x82
	CodeForbidden          Code = 0x83
	CodeNotFound           Code = 0x84
	CodeMethodNotAllowed   Code = 0x85
	CodeInternalError      Code = 0xa0
	CodeServiceUnavailable Code = 0xa3
)

func (c Code) Class() uint8 { return uint8(c) >> 5 }

func (c Code) Detail() uint8 { return uint8(c) & 0x1f }

func (c Code) IsRequest() bool { return c.Class() == 0 && c != CodeEmpty }

func (c Code) IsResponse() bool { return c.Class() >= 2 && c.Class() <= 5 }

// IsError reports whether c is a 4.xx or 5.xx response.
func (c Code) IsError() bool { return c.Class() == 4 || c.Class() == 5 }

func (c Code) String() string {
	switch c {
	case CodeGET:
		return "GET"
	case CodePOST:
		return "POST"
	case CodePUT:
		return "PUT"
	case CodeDELETE:
		return "DELETE"
	case CodeFETCH:
		return "FETCH"
	}
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}

// OptionNumber identifies a CoAP option.
type OptionNumber uint16

const (
	IfMatch       OptionNumber = 1
	URIHost       OptionNumber = 3
	ETag          OptionNumber = 4
	IfNoneMatch   OptionNumber = 5
	Observe       OptionNumber = 6
	URIPort       OptionNumber = 7
	LocationPath  OptionNumber = 8
	OSCORE        OptionNumber = 9
	URIPath       OptionNumber = 11
	ContentFormat OptionNumber = 12
	MaxAge        OptionNumber = 14
	URIQuery      OptionNumber = 15
	Accept        OptionNumber = 17
	LocationQuery OptionNumber = 20
	Block2        OptionNumber = 23
	Block1        OptionNumber = 27
	Size2         OptionNumber = 28
	ProxyURI      OptionNumber = 35
	ProxyScheme   OptionNumber = 39
	Size1         OptionNumber = 60
	NoResponse    OptionNumber = 258
)

// Class is the protection class of an option.
type Class uint8

const (
	// ClassDefault defers to the classification table.
	ClassDefault Class = iota
	// ClassU options stay visible to intermediaries and are not protected.
	ClassU
	// ClassE options are encrypted and authenticated.
	ClassE
	// ClassI options stay visible but are bound into the additional authenticated data.
	ClassI
)

func (c Class) String() string {
	switch c {
	case ClassU:
		return "U"
	case ClassE:
		return "E"
	case ClassI:
		return "I"
	default:
		return "default"
	}
}

// Options not listed here, including unknown ones, are class E.
var outerOptions = map[OptionNumber]Class{
	URIHost:     ClassU,
	URIPort:     ClassU,
	OSCORE:      ClassU,
	ProxyURI:    ClassU,
	ProxyScheme: ClassU,
}

// DefaultClass returns the table classification of an option number.
func (n OptionNumber) DefaultClass() Class {
	if c, ok := outerOptions[n]; ok {
		return c
	}
	return ClassE
}
