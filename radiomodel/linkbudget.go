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

// Package radiomodel computes the per-link RSSI/SNR (C1) and time-on-air /
// delivery delay (C2) for one simulated transmission. Both are pure
// functions of their inputs, apart from the shared pseudo-random generator
// in package prng, and run on the caller's own goroutine.
package radiomodel

import (
	"math"

	"github.com/loranet/lorasim-server/config"
	"github.com/loranet/lorasim-server/prng"
)

// Link carries the resolved (post-default) inputs to one delivery attempt,
// as produced by the dispatcher from a tx frame's meta.
type Link struct {
	Sender, Receiver   uint8
	SenderLoc, RecvLoc [2]float64
	TxPowerDbm         float64
	AQI                int
	Weather            string
	Obstacle           string
	SF                 config.SF
}

// DistanceKm returns the Euclidean distance between two node locations, in
// kilometers.
func DistanceKm(a, b [2]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// pathLossDb sums free-space, near-field, weather, air-quality, obstacle,
// earth-curvature, terrain-roughness, and multipath loss, floored at 32 dB.
func pathLossDb(l Link, distKm float64) float64 {
	sfSteps := float64(l.SF - config.SF7)

	dEff := math.Max(distKm, 0.002)
	total := 32.45 + 20*math.Log10(dEff) + 20*math.Log10(config.FrequencyMHz)

	if distKm < 0.010 {
		total += 15 * (1 - distKm/0.010)
	}

	total += config.WeatherAtten(l.Weather) * (1 - 0.01*sfSteps) * distKm

	if l.AQI > 50 {
		total += math.Pow(float64(l.AQI-50)/50, 1.5) * 0.5 * distKm * (1 - 0.02*sfSteps)
	}

	total += config.ObstacleLoss(l.Obstacle) * (1 - 0.025*sfSteps)

	if distKm > 8 {
		total += math.Pow((distKm-8)/17, 2) * 10
	}

	if distKm > 1 {
		// roughness is a unit-range deterministic factor; it can reduce as
		// well as add loss, modeling terrain that happens to help a link.
		roughness := prng.DeterministicUnit(prng.TerrainSeed(distKm))
		total += roughness * 3 * math.Log(distKm+1) * (1 - 0.03*sfSteps)
	}

	base := 2.5
	if l.Obstacle == config.DefaultObstacle {
		base = 0.8
	}
	multipathSeed := prng.MultipathSeed(l.Sender, l.Receiver, distKm)
	total += prng.DeterministicSigned(multipathSeed, 5) * base * (1 - 0.05*sfSteps)

	return math.Max(total, 32)
}

// RSSI returns the received signal strength (dBm) for l at distKm, including
// jitter, clamped to [-150, -35] dBm.
func RSSI(l Link, distKm float64) float64 {
	raw := l.TxPowerDbm - pathLossDb(l, distKm)
	raw += prng.Jitter(-1.5, 1.5)
	return clamp(raw, -150, -35)
}

// SNR returns the signal-to-noise ratio (dB) for l at distKm given rssi.
// rssi should be the value returned by RSSI for the same link.
func SNR(l Link, distKm, rssi float64) float64 {
	sfSteps := float64(l.SF - config.SF7)

	noiseFloor := -174 + 10*math.Log10(config.BandwidthHz) + config.NoiseFigureDb
	snr := rssi - noiseFloor

	processingGain := 10 * math.Log10(math.Pow(2, float64(l.SF)))
	snr += processingGain / 10

	snrMax := config.SnrMax(l.SF)
	snrMin := config.SnrMin(l.SF)
	if snr > snrMax {
		snr = snrMax
	}

	snr -= (0.45 - 0.025*sfSteps) * distKm

	maxRange := config.MaxRangeFor(l.SF)
	if half := 0.5 * maxRange; distKm > half {
		span := snrMax - snrMin
		ratio := (distKm - half) / half
		penalty := span * math.Pow(ratio, 1.5)
		if ceiling := snrMax - penalty; snr > ceiling {
			snr = ceiling
		}
	}

	fadingSeed := prng.FadingSeed(distKm, int(l.SF))
	snr += prng.DeterministicSigned(fadingSeed, 2.5-0.2*sfSteps)

	snr += prng.Jitter(-0.1, 0.1)

	return snr
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
