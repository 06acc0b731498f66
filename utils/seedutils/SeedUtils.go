// Package seedutils provides utilities for seeding random number
// generators, both process-wide and per component.
package seedutils

import (
	mrand "math/rand"

	"golang.org/x/exp/rand"
)

// DefaultSeed is the seed used by components that are not given an
// explicit seed
const DefaultSeed uint64 = 11037

// Independent random streams derived from a single component seed
const (
	InitStream uint64 = iota + 1
	DropoutStream
	InputStream
)

// SeedAll seeds every process-wide random source. It should be called
// once by the host application at startup, before any network is
// constructed.
//
// Two global sources exist: Go's math/rand and golang.org/x/exp/rand,
// which gonum distributions draw from when no Src is given. Networks
// never rely on either: they draw from sources derived with NewSource.
// This build has no accelerator device, so there is no device generator
// to seed.
func SeedAll(seed uint64) {
	mrand.Seed(int64(seed))
	rand.Seed(seed)
}

// NewSource returns a new source for the given stream of seed. Sources
// of different streams of the same seed produce unrelated sequences,
// so a single component seed can drive both weight initialization and
// dropout without the two interfering.
func NewSource(seed, stream uint64) rand.Source {
	return rand.NewSource(mix(seed + stream*0x9e3779b97f4a7c15))
}

// mix is the splitmix64 finalizer
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
