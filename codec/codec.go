// Package codec implements the Mesh's Canonical Codec (CC): a
// byte-deterministic binary encoding for structured values, bound to a
// SchemaID so that every encoded object carries its own structural
// contract.
//
// Values are the small canonical value model the codec understands: nil,
// bool, int64, uint64, string, []byte, []any, and map[string]any. Encoding
// rules (spec.md §4.1):
//
//   - integers use the shortest header width that fits; decode rejects
//     non-minimal encodings
//   - map keys serialize in ascending byte-lexicographic order of their own
//     canonical encoding; duplicate keys are a decode error
//   - strings are UTF-8 with an explicit byte length; arrays are
//     definite-length
//   - every encoded value is prefixed with the 32-byte SchemaHash of its
//     binding SchemaID
package codec

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/fcpmesh/mesh/ids"
)

// maxDeclaredLength bounds any single string/bytes/array/map length field
// to guard against pathological allocations from malformed input.
const maxDeclaredLength = 1 << 20

const (
	majorUint   = 0
	majorNegInt = 1
	majorBytes  = 2
	majorText   = 3
	majorArray  = 4
	majorMap    = 5
	majorSimple = 7
)

const (
	simpleFalse = 20
	simpleTrue  = 21
	simpleNull  = 22
)

// Encode renders v as canonical bytes bound to schema. Never panics; shape
// violations return a *Error with ReasonSchemaMismatch.
func Encode(v any, schema Schema) ([]byte, error) {
	h := schema.ID.Hash()
	buf := make([]byte, 0, 64)
	buf = append(buf, h[:]...)
	buf, err := encodeValue(buf, v, schema, true)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode parses canonical bytes bound to schema back into the value model
// described in the package doc. The embedded schema hash is verified
// against schema.ID.Hash() before anything else.
func Decode(data []byte, schema Schema) (any, error) {
	want := schema.ID.Hash()
	if len(data) < len(want) {
		return nil, newErr(ReasonSchemaMismatch, "input shorter than schema hash")
	}
	var got ids.Digest
	copy(got[:], data[:len(want)])
	if got != want {
		return nil, newErr(ReasonSchemaMismatch, "embedded schema hash does not match")
	}
	v, n, err := decodeValue(data[len(want):], schema, true)
	if err != nil {
		return nil, err
	}
	if n != len(data)-len(want) {
		return nil, newErr(ReasonNonCanonical, "trailing bytes after value")
	}
	return v, nil
}

// SchemaHashOf is a convenience wrapper over SchemaID.Hash.
func SchemaHashOf(id SchemaID) ids.SchemaHash { return id.Hash() }

// ObjectIDOf computes the content address of v under schema: the keyed
// digest of Encode(v, schema).
func ObjectIDOf(v any, schema Schema) (ids.ObjectID, error) {
	b, err := Encode(v, schema)
	if err != nil {
		return ids.ObjectID{}, err
	}
	return keyedDigest(b), nil
}

func encodeValue(buf []byte, v any, schema Schema, top bool) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(buf, byte(majorSimple<<5|simpleNull)), nil
	case bool:
		if val {
			return append(buf, byte(majorSimple<<5|simpleTrue)), nil
		}
		return append(buf, byte(majorSimple<<5|simpleFalse)), nil
	case int:
		return encodeValue(buf, int64(val), schema, top)
	case int64:
		if val >= 0 {
			return encodeUint(buf, majorUint, uint64(val)), nil
		}
		return encodeUint(buf, majorNegInt, uint64(-(val + 1))), nil
	case uint64:
		return encodeUint(buf, majorUint, val), nil
	case string:
		if !utf8.ValidString(val) {
			return nil, newErr(ReasonNonCanonical, "string is not valid utf-8")
		}
		b := []byte(val)
		if len(b) > maxDeclaredLength {
			return nil, newErr(ReasonLengthOverflow, "string too long")
		}
		buf = encodeUint(buf, majorText, uint64(len(b)))
		return append(buf, b...), nil
	case []byte:
		if len(val) > maxDeclaredLength {
			return nil, newErr(ReasonLengthOverflow, "bytes too long")
		}
		buf = encodeUint(buf, majorBytes, uint64(len(val)))
		return append(buf, val...), nil
	case []any:
		if len(val) > maxDeclaredLength {
			return nil, newErr(ReasonLengthOverflow, "array too long")
		}
		buf = encodeUint(buf, majorArray, uint64(len(val)))
		for _, elem := range val {
			var err error
			buf, err = encodeValue(buf, elem, Schema{}, false)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case map[string]any:
		return encodeMap(buf, val, schema, top)
	default:
		return nil, newErr(ReasonSchemaMismatch, fmt.Sprintf("unsupported value type %T", v))
	}
}

func encodeMap(buf []byte, m map[string]any, schema Schema, top bool) ([]byte, error) {
	if len(m) > maxDeclaredLength {
		return nil, newErr(ReasonLengthOverflow, "map too long")
	}
	type entry struct {
		key []byte
		all []byte
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		if top && schema.constrained() && !schema.allows(k) {
			return nil, newErr(ReasonSchemaMismatch, fmt.Sprintf("field %q not permitted by schema", k))
		}
		keyBytes, err := encodeValue(nil, k, Schema{}, false)
		if err != nil {
			return nil, err
		}
		full, err := encodeValue(append([]byte(nil), keyBytes...), v, Schema{}, false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: keyBytes, all: full})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
	buf = encodeUint(buf, majorMap, uint64(len(entries)))
	for _, e := range entries {
		buf = append(buf, e.all...)
	}
	return buf, nil
}

func encodeUint(buf []byte, major byte, v uint64) []byte {
	switch {
	case v < 24:
		return append(buf, major<<5|byte(v))
	case v <= 0xFF:
		return append(buf, major<<5|24, byte(v))
	case v <= 0xFFFF:
		return append(buf, major<<5|25, byte(v>>8), byte(v))
	case v <= 0xFFFFFFFF:
		return append(buf, major<<5|26, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(buf, major<<5|27,
			byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// minimalAdditional returns the additional-info nibble a canonical encoder
// must use for v; used by the decoder to reject non-minimal encodings.
func minimalAdditional(v uint64) byte {
	switch {
	case v < 24:
		return byte(v)
	case v <= 0xFF:
		return 24
	case v <= 0xFFFF:
		return 25
	case v <= 0xFFFFFFFF:
		return 26
	default:
		return 27
	}
}

func decodeValue(data []byte, schema Schema, top bool) (any, int, error) {
	if len(data) == 0 {
		return nil, 0, newErr(ReasonNonCanonical, "unexpected end of input")
	}
	head := data[0]
	major := head >> 5
	additional := head & 0x1F

	switch major {
	case majorSimple:
		switch additional {
		case simpleNull:
			return nil, 1, nil
		case simpleTrue:
			return true, 1, nil
		case simpleFalse:
			return false, 1, nil
		default:
			return nil, 0, newErr(ReasonNonCanonical, "unknown simple value")
		}
	case majorUint:
		v, n, err := decodeUintBody(data)
		if err != nil {
			return nil, 0, err
		}
		return int64(v), n, nil
	case majorNegInt:
		v, n, err := decodeUintBody(data)
		if err != nil {
			return nil, 0, err
		}
		return -(int64(v) + 1), n, nil
	case majorText:
		v, n, err := decodeLengthPrefixedBody(data)
		if err != nil {
			return nil, 0, err
		}
		if !utf8.Valid(v) {
			return nil, 0, newErr(ReasonNonCanonical, "string is not valid utf-8")
		}
		return string(v), n, nil
	case majorBytes:
		v, n, err := decodeLengthPrefixedBody(data)
		if err != nil {
			return nil, 0, err
		}
		return append([]byte(nil), v...), n, nil
	case majorArray:
		return decodeArray(data)
	case majorMap:
		return decodeMap(data, schema, top)
	default:
		return nil, 0, newErr(ReasonNonCanonical, "unknown major type")
	}
}

// decodeUintBody decodes the uint64 encoded at data[0:], returning the
// value and the number of bytes consumed, rejecting non-minimal widths.
func decodeUintBody(data []byte) (uint64, int, error) {
	head := data[0]
	additional := head & 0x1F
	switch {
	case additional < 24:
		if minimalAdditional(uint64(additional)) != additional {
			return 0, 0, newErr(ReasonNonCanonical, "non-minimal immediate value")
		}
		return uint64(additional), 1, nil
	case additional == 24:
		if len(data) < 2 {
			return 0, 0, newErr(ReasonNonCanonical, "truncated 1-byte int")
		}
		v := uint64(data[1])
		if minimalAdditional(v) != 24 {
			return 0, 0, newErr(ReasonNonCanonical, "non-minimal 1-byte int")
		}
		return v, 2, nil
	case additional == 25:
		if len(data) < 3 {
			return 0, 0, newErr(ReasonNonCanonical, "truncated 2-byte int")
		}
		v := uint64(data[1])<<8 | uint64(data[2])
		if minimalAdditional(v) != 25 {
			return 0, 0, newErr(ReasonNonCanonical, "non-minimal 2-byte int")
		}
		return v, 3, nil
	case additional == 26:
		if len(data) < 5 {
			return 0, 0, newErr(ReasonNonCanonical, "truncated 4-byte int")
		}
		v := uint64(data[1])<<24 | uint64(data[2])<<16 | uint64(data[3])<<8 | uint64(data[4])
		if minimalAdditional(v) != 26 {
			return 0, 0, newErr(ReasonNonCanonical, "non-minimal 4-byte int")
		}
		return v, 5, nil
	case additional == 27:
		if len(data) < 9 {
			return 0, 0, newErr(ReasonNonCanonical, "truncated 8-byte int")
		}
		var v uint64
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(data[1+i])
		}
		if minimalAdditional(v) != 27 {
			return 0, 0, newErr(ReasonNonCanonical, "non-minimal 8-byte int")
		}
		return v, 9, nil
	default:
		return 0, 0, newErr(ReasonNonCanonical, "reserved additional-info value")
	}
}

func decodeLengthPrefixedBody(data []byte) ([]byte, int, error) {
	length, n, err := decodeUintBody(data)
	if err != nil {
		return nil, 0, err
	}
	if length > maxDeclaredLength {
		return nil, 0, newErr(ReasonLengthOverflow, "declared length too large")
	}
	end := n + int(length)
	if end > len(data) {
		return nil, 0, newErr(ReasonNonCanonical, "truncated length-prefixed value")
	}
	return data[n:end], end, nil
}

func decodeArray(data []byte) (any, int, error) {
	count, n, err := decodeUintBody(data)
	if err != nil {
		return nil, 0, err
	}
	if count > maxDeclaredLength {
		return nil, 0, newErr(ReasonLengthOverflow, "array too long")
	}
	out := make([]any, 0, count)
	for i := uint64(0); i < count; i++ {
		v, consumed, err := decodeValue(data[n:], Schema{}, false)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
		n += consumed
	}
	return out, n, nil
}

func decodeMap(data []byte, schema Schema, top bool) (any, int, error) {
	count, n, err := decodeUintBody(data)
	if err != nil {
		return nil, 0, err
	}
	if count > maxDeclaredLength {
		return nil, 0, newErr(ReasonLengthOverflow, "map too long")
	}
	out := make(map[string]any, count)
	var prevKeyBytes []byte
	for i := uint64(0); i < count; i++ {
		keyStart := n
		if len(data) <= n || data[n]>>5 != majorText {
			return nil, 0, newErr(ReasonNonCanonical, "map key is not a text string")
		}
		keyVal, keyConsumed, err := decodeValue(data[n:], Schema{}, false)
		if err != nil {
			return nil, 0, err
		}
		keyEncodedBytes := data[keyStart : n+keyConsumed]
		n += keyConsumed

		key := keyVal.(string)
		if top && schema.constrained() && !schema.allows(key) {
			return nil, 0, newErr(ReasonUnknownField, fmt.Sprintf("field %q not permitted by schema", key))
		}

		if prevKeyBytes != nil {
			cmp := bytes.Compare(keyEncodedBytes, prevKeyBytes)
			switch {
			case cmp == 0:
				return nil, 0, newErr(ReasonDuplicateKey, fmt.Sprintf("duplicate map key %q", key))
			case cmp < 0:
				return nil, 0, newErr(ReasonNonCanonical, "map keys out of canonical order")
			}
		}
		prevKeyBytes = append([]byte(nil), keyEncodedBytes...)

		val, consumed, err := decodeValue(data[n:], Schema{}, false)
		if err != nil {
			return nil, 0, err
		}
		out[key] = val
		n += consumed
	}
	return out, n, nil
}
