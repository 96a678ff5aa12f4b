package keycache

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// HashKey computes the FNV-1a hash of a key. Callers decoding with
// their own hash pipeline may pass any 64-bit hash to GetOrCreate
// instead; the cache only requires that equal keys hash equally within
// one decode run.
func HashKey(key []byte) uint64 {
	hash := fnvOffset64
	for _, b := range key {
		hash ^= uint64(b)
		hash *= fnvPrime64
	}
	return hash
}
