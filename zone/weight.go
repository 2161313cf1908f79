package zone

import (
	"github.com/fcpmesh/mesh/codec"
	"github.com/fcpmesh/mesh/ids"
)

// pathWeight computes the deterministic keyed digest used to order paths
// within a priority class during multipath selection. symbolIndex is
// encoded little-endian to match the byte layout of the original
// implementation's path-weight hash.
func pathWeight(objectID ids.ObjectID, symbolIndex uint32, pathID ids.PathID) ids.Digest {
	var idx [4]byte
	idx[0] = byte(symbolIndex)
	idx[1] = byte(symbolIndex >> 8)
	idx[2] = byte(symbolIndex >> 16)
	idx[3] = byte(symbolIndex >> 24)
	return codec.KeyedDigest(objectID[:], idx[:], []byte(pathID))
}
