// Package protocol implements the wire codec: parsing and serializing the
// RESP-style tagged values this server speaks, both to clients and to an
// upstream primary during replication.
package protocol

import "fmt"

// Kind tags which variant a Value holds.
type Kind int

const (
	KindSimpleString Kind = iota
	KindError
	KindInteger
	KindBulkString
	KindArray
	KindNull
)

// Value is a single protocol value: exactly one of its fields is meaningful,
// selected by Kind. Bulk payloads are carried as []byte so binary-unsafe
// conversions never happen on the hot path.
type Value struct {
	Kind Kind

	Str   string  // SimpleString / Error text
	Int   int64   // Integer
	Bulk  []byte  // BulkString payload (nil only for Null)
	Array []Value // Array elements
}

// SimpleString builds a SimpleString value.
func SimpleString(s string) Value { return Value{Kind: KindSimpleString, Str: s} }

// Err builds an Error value. The "ERR " prefix is added at serialization
// time, not here. A parsed Error keeps the "ERR " it arrived with, so
// serializing it again yields a second prefix.
func Err(s string) Value { return Value{Kind: KindError, Str: s} }

// Errf builds an Error value from a format string.
func Errf(format string, args ...interface{}) Value {
	return Value{Kind: KindError, Str: fmt.Sprintf(format, args...)}
}

// Integer builds an Integer value.
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// BulkString builds a BulkString value from a UTF-8 string.
func BulkString(s string) Value { return Value{Kind: KindBulkString, Bulk: []byte(s)} }

// BulkBytes builds a BulkString value from raw bytes.
func BulkBytes(b []byte) Value { return Value{Kind: KindBulkString, Bulk: b} }

// ArrayOf builds an Array value.
func ArrayOf(elems ...Value) Value { return Value{Kind: KindArray, Array: elems} }

// Null is the dedicated null sentinel value.
var Null = Value{Kind: KindNull}

// Equal reports whether two values are the same shape and content. Used by
// the codec's round-trip property tests.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindSimpleString, KindError:
		return v.Str == o.Str
	case KindInteger:
		return v.Int == o.Int
	case KindBulkString:
		return string(v.Bulk) == string(o.Bulk)
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindNull:
		return true
	default:
		return false
	}
}

// Request is the restricted shape the dispatcher accepts: an array whose
// elements are all bulk strings, interpreted as UTF-8 text arguments.
type Request struct {
	Args []string
}
