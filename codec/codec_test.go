package codec_test

import (
	"testing"

	"github.com/fcpmesh/mesh/codec"
	"github.com/stretchr/testify/require"
)

var testSchema = codec.NewSchema(codec.SchemaID{Namespace: "mesh.test", Name: "Widget", Version: 1})

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []any{
		nil,
		true,
		false,
		int64(0),
		int64(23),
		int64(24),
		int64(255),
		int64(256),
		int64(65535),
		int64(65536),
		int64(4294967295),
		int64(4294967296),
		int64(-1),
		int64(-24),
		int64(-25),
		"",
		"hello, mesh",
		[]byte{1, 2, 3},
		[]any{int64(1), "two", []any{int64(3)}},
		map[string]any{"b": int64(2), "a": int64(1), "c": "three"},
	}

	for _, v := range cases {
		encoded, err := codec.Encode(v, testSchema)
		require.NoError(t, err)
		decoded, err := codec.Decode(encoded, testSchema)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestRepeatedEncodeIsByteIdentical(t *testing.T) {
	t.Parallel()

	v := map[string]any{"z": int64(1), "m": "mid", "a": []any{int64(1), int64(2)}}
	first, err := codec.Encode(v, testSchema)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := codec.Encode(v, testSchema)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestMapEncodingIndependentOfInsertionOrder(t *testing.T) {
	t.Parallel()

	a := map[string]any{"alpha": int64(1), "beta": int64(2), "gamma": int64(3)}
	b := map[string]any{"gamma": int64(3), "alpha": int64(1), "beta": int64(2)}

	encA, err := codec.Encode(a, testSchema)
	require.NoError(t, err)
	encB, err := codec.Encode(b, testSchema)
	require.NoError(t, err)
	require.Equal(t, encA, encB)
}

func TestDifferentSchemasProduceDifferentBytes(t *testing.T) {
	t.Parallel()

	s1 := codec.NewSchema(codec.SchemaID{Namespace: "mesh.test", Name: "A", Version: 1})
	s2 := codec.NewSchema(codec.SchemaID{Namespace: "mesh.test", Name: "B", Version: 1})

	v := map[string]any{"x": int64(1)}
	b1, err := codec.Encode(v, s1)
	require.NoError(t, err)
	b2, err := codec.Encode(v, s2)
	require.NoError(t, err)
	require.NotEqual(t, b1, b2)
}

func TestDecodeRejectsWrongSchema(t *testing.T) {
	t.Parallel()

	other := codec.NewSchema(codec.SchemaID{Namespace: "mesh.test", Name: "Other", Version: 1})
	encoded, err := codec.Encode(int64(1), testSchema)
	require.NoError(t, err)

	_, err = codec.Decode(encoded, other)
	require.ErrorIs(t, err, codec.ErrSchemaMismatch)
}

func TestDecodeRejectsDuplicateKeys(t *testing.T) {
	t.Parallel()

	// Hand-build a map payload with two identical keys "a" to exercise the
	// decoder's duplicate-key check directly (the encoder can never
	// produce this from a Go map).
	schemaHash := testSchema.ID.Hash()
	var buf []byte
	buf = append(buf, schemaHash[:]...)
	buf = append(buf, 0x5<<5|2) // map, 2 entries
	key := []byte{0x3 << 5 | 1, 'a'}
	val := []byte{0x0<<5 | 1} // uint 1
	buf = append(buf, key...)
	buf = append(buf, val...)
	buf = append(buf, key...)
	buf = append(buf, val...)

	_, err := codec.Decode(buf, testSchema)
	require.ErrorIs(t, err, codec.ErrDuplicateKey)
}

func TestDecodeRejectsNonMinimalInt(t *testing.T) {
	t.Parallel()

	schemaHash := testSchema.ID.Hash()
	var buf []byte
	buf = append(buf, schemaHash[:]...)
	// uint with additional=24 (1-byte form) encoding value 5, which fits
	// in the immediate form: non-minimal.
	buf = append(buf, 0x0<<5|24, 5)

	_, err := codec.Decode(buf, testSchema)
	require.ErrorIs(t, err, codec.ErrNonCanonical)
}

func TestEncodeRejectsFieldOutsideSchema(t *testing.T) {
	t.Parallel()

	schema := codec.NewSchema(codec.SchemaID{Namespace: "mesh.test", Name: "Strict", Version: 1}, "allowed")
	_, err := codec.Encode(map[string]any{"forbidden": int64(1)}, schema)
	require.ErrorIs(t, err, codec.ErrSchemaMismatch)

	encoded, err := codec.Encode(map[string]any{"allowed": int64(1)}, schema)
	require.NoError(t, err)
	decoded, err := codec.Decode(encoded, schema)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"allowed": int64(1)}, decoded)
}

func TestDecodeRejectsUnknownFieldOnWire(t *testing.T) {
	t.Parallel()

	schema := codec.NewSchema(codec.SchemaID{Namespace: "mesh.test", Name: "StrictWire", Version: 1}, "allowed")
	schemaHash := schema.ID.Hash()

	var buf []byte
	buf = append(buf, schemaHash[:]...)
	buf = append(buf, 0x5<<5|1) // map, 1 entry
	buf = append(buf, 0x3<<5|9)
	buf = append(buf, []byte("forbidden")...)
	buf = append(buf, 0x0<<5|1) // value: uint 1

	_, err := codec.Decode(buf, schema)
	require.ErrorIs(t, err, codec.ErrUnknownField)
}

func TestObjectIDStableUnderEqualEncoding(t *testing.T) {
	t.Parallel()

	a := map[string]any{"x": int64(1), "y": int64(2)}
	b := map[string]any{"y": int64(2), "x": int64(1)}

	idA, err := codec.ObjectIDOf(a, testSchema)
	require.NoError(t, err)
	idB, err := codec.ObjectIDOf(b, testSchema)
	require.NoError(t, err)
	require.Equal(t, idA, idB)
}

func TestSchemaHashDeterminism(t *testing.T) {
	t.Parallel()

	s1 := codec.SchemaID{Namespace: "mesh.test", Name: "Widget", Version: 1}
	s2 := codec.SchemaID{Namespace: "mesh.test", Name: "Widget", Version: 1}
	s3 := codec.SchemaID{Namespace: "mesh.test", Name: "Widget", Version: 2}

	require.Equal(t, s1.Hash(), s2.Hash())
	require.NotEqual(t, s1.Hash(), s3.Hash())
	require.Len(t, s1.Hash(), 32)
}
