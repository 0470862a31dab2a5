package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring mapping arbitrary keys onto stripe indexes.
type ring struct {
	hashRing *treemap.Map

	// minStripe caches the value of the min entry in hashRing, which is where
	// hashes past the last entry wrap around to.
	minStripe int
}

// newRing returns a ring over stripes [0, stripes) where every stripe has
// replicationFactor points on the ring.
func newRing(stripes, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)

	for stripe := 0; stripe < int(stripes); stripe++ {
		stripeBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(stripeBytes, uint64(stripe))
		stripeHash, _ := murmur3.Sum128(stripeBytes)

		seed := make([]byte, 8)
		binary.LittleEndian.PutUint64(seed, stripeHash)
		for i := 0; i < int(replicationFactor); i++ {
			hasher := murmur3.New128()
			hasher.Write(seed)
			indexBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(indexBytes, uint32(i))
			hasher.Write(indexBytes)
			hash, _ := hasher.Sum128()
			hashRing.Put(int64(hash), stripe)
		}
	}

	r := &ring{hashRing: hashRing}
	if _, min := hashRing.Min(); min != nil {
		r.minStripe = min.(int)
	}
	return r
}

// stripe consistently hashes key onto a stripe index.
func (r *ring) stripe(key []byte) int {
	raw, _ := murmur3.Sum128(key)
	_, stripe := r.hashRing.Ceiling(int64(raw))
	if stripe != nil {
		return stripe.(int)
	}
	return r.minStripe
}
