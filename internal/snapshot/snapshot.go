// Package snapshot supplies the opaque byte blob PSYNC sends a replica as
// its full resync payload. The persistent snapshot format ("RDB") itself is
// out of scope for this server; a Provider only needs to produce bytes the
// dispatcher can wrap in a BulkString.
package snapshot

import "encoding/base64"

// emptyRDBBase64 is the fixed empty-RDB constant carried over verbatim from
// the original implementation. It decodes to a minimal, valid (but empty)
// RDB file; conformance does not require decoding it at all.
const emptyRDBBase64 = "UkVESVMwMDEx+glyZWRpcy12ZXIFNy4yLjD6CnJlZGlzLWJpdHPAQPoFY3RpbWXCbQi8ZfoIdXNlZC1tZW3CsMQQAPoIYW9mLWJhc2XAAP/wbjv+wP9aog=="

// Provider produces a database snapshot on demand.
type Provider interface {
	Snapshot() []byte
}

// Fixed is a Provider that always returns the hard-coded empty-RDB
// constant, regardless of store contents. It exists so the command
// dispatcher never has to know the snapshot format.
type Fixed struct {
	decoded []byte
}

// NewFixed decodes the empty-RDB constant once and returns a Provider that
// serves it forever.
func NewFixed() *Fixed {
	decoded, err := base64.StdEncoding.DecodeString(emptyRDBBase64)
	if err != nil {
		// The constant is compiled in and known-good; a decode failure
		// here would mean the constant itself was corrupted in source.
		panic("snapshot: empty RDB constant is not valid base64: " + err.Error())
	}
	return &Fixed{decoded: decoded}
}

// Snapshot returns the fixed empty-RDB payload.
func (f *Fixed) Snapshot() []byte {
	return f.decoded
}
