package models

import "github.com/cespare/xxhash/v2"

// Fingerprint is the non-cryptographic id used for sources and posts.
// Equal inputs always collide, so two posts with the same title share an id
// and overwrite each other in the cache. That is accepted.
func Fingerprint(s string) uint64 {
	return xxhash.Sum64String(s)
}
