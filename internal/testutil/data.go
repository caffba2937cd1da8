// Package testutil provides deterministic test-data builders shared by
// the harness tests. All randomness is seeded so repeated runs build
// identical byte streams.
package testutil

import "math/rand"

// BuildTestData returns length pseudo-random bytes seeded with length,
// so the same length always yields the same bytes.
func BuildTestData(length int) []byte {
	return BuildTestDataSeeded(length, int64(length))
}

// BuildTestDataSeeded returns length pseudo-random bytes from the
// given seed.
func BuildTestDataSeeded(length int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, length)
	rng.Read(data)
	return data
}

// JoinByteArrays concatenates its arguments into a fresh slice.
func JoinByteArrays(arrays ...[]byte) []byte {
	total := 0
	for _, a := range arrays {
		total += len(a)
	}
	joined := make([]byte, 0, total)
	for _, a := range arrays {
		joined = append(joined, a...)
	}
	return joined
}
