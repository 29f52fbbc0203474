// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package prng supplies the medium model's two flavors of randomness:
//
//   - deterministic terms (terrain/multipath/fading noise) that
//     must reproduce identically for identical inputs, derived by hashing
//     the quantized inputs into a seed and drawing from a freshly-seeded
//     math/rand source;
//   - non-deterministic jitter and statistical draws, taken from the
//     package-level math/rand source, which has been safe for concurrent
//     use across goroutines since Go 1.20.
//
// The hash used to build deterministic seeds is FNV-1a (64-bit), applied to
// the little-endian encoding of the quantized input components.
package prng

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
)

// Seed is a reproducible seed for one deterministic noise term.
type Seed int64

// quantize rounds v to the nearest multiple of step and returns it as an
// integer count of steps, so that nearby floats which should be considered
// "the same input" hash identically.
func quantize(v, step float64) int64 {
	return int64(math.Round(v / step))
}

// hashSeed combines an arbitrary number of integer components into one
// Seed via FNV-1a.
func hashSeed(salt uint64, parts ...int64) Seed {
	h := fnv.New64a()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, salt)
	_, _ = h.Write(buf)
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf, uint64(p))
		_, _ = h.Write(buf)
	}
	return Seed(int64(h.Sum64()))
}

// There is no near-field seed: the near-field penalty is a deterministic
// closed-form function of distance alone, not a noise term, so it needs no
// seed.

// TerrainSeed derives the seed for the terrain-roughness term, which must
// depend only on distance rounded to 0.1 km.
func TerrainSeed(distKm float64) Seed {
	return hashSeed(0xA17A11, quantize(distKm, 0.1))
}

// MultipathSeed derives the seed for the multipath term, keyed on the
// sender/receiver pair and distance rounded to 0.01 km.
func MultipathSeed(sender, receiver uint8, distKm float64) Seed {
	return hashSeed(0x5eed5eed, int64(sender), int64(receiver), quantize(distKm, 0.01))
}

// FadingSeed derives the seed for the SNR fading term, keyed on distance
// rounded to 0.1 km and the spreading factor.
func FadingSeed(distKm float64, sf int) Seed {
	return hashSeed(0xFAD1E, quantize(distKm, 0.1), int64(sf))
}

// DeterministicUnit draws a reproducible value in [-1, 1) from seed.
func DeterministicUnit(seed Seed) float64 {
	r := rand.New(rand.NewSource(int64(seed)))
	return r.Float64()*2 - 1
}

// DeterministicSigned draws a reproducible value in [-magnitude, magnitude)
// from seed.
func DeterministicSigned(seed Seed, magnitude float64) float64 {
	return DeterministicUnit(seed) * magnitude
}

// Jitter draws a non-deterministic value uniformly from [min, max), using
// the shared package-level generator.
func Jitter(min, max float64) float64 {
	return min + rand.Float64()*(max-min)
}

// UnitRandom draws a non-deterministic value uniformly from [0, 1), used by
// the drop-decision engine's statistical roll.
func UnitRandom() float64 {
	return rand.Float64()
}
