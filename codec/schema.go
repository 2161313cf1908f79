package codec

import (
	"sort"

	"github.com/fcpmesh/mesh/ids"
	"github.com/zeebo/blake3"
)

// schemaHashKey is the fixed key used to key the BLAKE3 digest for every
// schema/object/bundle hash in the mesh (spec.md §9 open question 1: one
// keyed 32-byte digest construction, frozen across versions).
var schemaHashKey = [32]byte{
	'f', 'c', 'p', '-', 'm', 'e', 's', 'h',
	's', 'c', 'h', 'e', 'm', 'a', '-', 'h',
	'a', 's', 'h', '-', 'v', '1', 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
}

// KeyedDigest exposes the mesh's single frozen keyed-BLAKE3 construction to
// other packages (policy bundle hashes, manifest interface hashes,
// transport path weighting) so that every 32-byte keyed digest in the mesh
// comes from the same instance, per spec.md §9 open question 1.
func KeyedDigest(parts ...[]byte) ids.Digest {
	return keyedDigest(parts...)
}

func keyedDigest(parts ...[]byte) ids.Digest {
	h, err := blake3.NewKeyed(schemaHashKey[:])
	if err != nil {
		// The key is a fixed 32-byte constant; NewKeyed only fails on key
		// length, so this can only happen if the constant above is edited
		// incorrectly.
		panic(err)
	}
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var out ids.Digest
	sum := h.Sum(nil)
	copy(out[:], sum)
	return out
}

// SchemaID identifies a structural contract by namespace, name, and
// version. Two SchemaIDs with equal fields always hash to the same
// SchemaHash; any field change yields a different hash.
type SchemaID struct {
	Namespace string
	Name      string
	Version   uint32
}

// Hash computes the keyed SchemaHash for id. Pure: identical inputs
// produce identical outputs on every platform.
func (id SchemaID) Hash() ids.SchemaHash {
	var versionBytes [4]byte
	versionBytes[0] = byte(id.Version)
	versionBytes[1] = byte(id.Version >> 8)
	versionBytes[2] = byte(id.Version >> 16)
	versionBytes[3] = byte(id.Version >> 24)
	return keyedDigest([]byte(id.Namespace), []byte{0}, []byte(id.Name), []byte{0}, versionBytes[:])
}

// Schema binds a SchemaID to an optional field whitelist for map-shaped
// values. A nil FieldSet means any field set is accepted (schema binding
// is identity-only, e.g. for opaque payloads); a non-nil FieldSet rejects
// unknown keys on encode (SchemaMismatch) and decode (UnknownField).
type Schema struct {
	ID        SchemaID
	FieldSet  []string
	fieldsSet map[string]struct{}
}

// NewSchema constructs a Schema with the given field whitelist. Pass nil
// fields to accept any map shape.
func NewSchema(id SchemaID, fields ...string) Schema {
	s := Schema{ID: id}
	if fields != nil {
		s.FieldSet = append([]string(nil), fields...)
		sort.Strings(s.FieldSet)
		s.fieldsSet = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			s.fieldsSet[f] = struct{}{}
		}
	}
	return s
}

func (s Schema) allows(field string) bool {
	if s.fieldsSet == nil {
		return true
	}
	_, ok := s.fieldsSet[field]
	return ok
}

func (s Schema) constrained() bool {
	return s.fieldsSet != nil
}
