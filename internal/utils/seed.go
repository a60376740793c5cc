package utils

import "github.com/cespare/xxhash/v2"

// Seed derives a stable pseudo-random value from s.
func Seed(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Pick selects an item from items using a different slice of seed per salt,
// so one seed can drive several independent choices.
func Pick[T any](items []T, seed, salt uint64) T {
	if salt == 0 {
		salt = 1
	}
	return items[int((seed/salt)%uint64(len(items)))]
}
