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

// Package dropmodel decides, for one delivery attempt, whether the packet
// is delivered or dropped, and why (C3). It is a pure function of its
// inputs plus the shared prng draws, and never mutates the registry itself
// -- callers apply loss-streak bookkeeping based on the Verdict.
package dropmodel

import (
	"math"

	"github.com/loranet/lorasim-server/config"
	"github.com/loranet/lorasim-server/prng"
)

// Reason names why a delivery attempt was dropped, or "" if it was kept.
type Reason string

const (
	Delivered             Reason = ""
	Collision             Reason = "COLLISION"
	RssiTooLow            Reason = "RSSI_TOO_LOW"
	SnrTooLow             Reason = "SNR_TOO_LOW"
	OutOfRange            Reason = "OUT_OF_RANGE"
	NetworkCongestion     Reason = "NETWORK_CONGESTION"
	PersistentLinkFailure Reason = "PERSISTENT_LINK_FAILURE"
	MarginalSnr           Reason = "MARGINAL_SNR"
	RandomLoss            Reason = "RANDOM_LOSS"
)

// Inputs bundles everything the drop engine needs for one attempt.
type Inputs struct {
	SF          config.SF
	DistKm      float64
	Rssi        float64
	Snr         float64
	Collision   bool
	InFlight    int
	MaxInFlight int
	LossStreak  int
}

// Verdict reports whether a packet is kept, and if not, the drop reason.
type Verdict struct {
	Dropped bool
	Reason  Reason
}

// Evaluate runs the ordered drop-rule chain and returns the resulting
// verdict. OUT_OF_RANGE, the hard 25 km cap, is checked first: it always
// drops regardless of any other condition.
func Evaluate(in Inputs) Verdict {
	if in.DistKm > config.MaxRangeKm {
		return Verdict{Dropped: true, Reason: OutOfRange}
	}
	if in.Collision {
		return Verdict{Dropped: true, Reason: Collision}
	}
	if in.Rssi < config.Sensitivity(in.SF) {
		return Verdict{Dropped: true, Reason: RssiTooLow}
	}
	snrMin := config.SnrMin(in.SF)
	if in.Snr < snrMin {
		return Verdict{Dropped: true, Reason: SnrTooLow}
	}

	maxRangeSF := config.MaxRangeFor(in.SF)
	if in.DistKm > maxRangeSF {
		ratio := in.DistKm / maxRangeSF
		rangeDropP := math.Min(0.95, math.Pow(ratio-1, 2)*0.9)
		if prng.UnitRandom() < rangeDropP {
			return Verdict{Dropped: true, Reason: refine(in, snrMin)}
		}
	}

	p := statisticalDropProbability(in)
	if prng.UnitRandom() < p {
		return Verdict{Dropped: true, Reason: refine(in, snrMin)}
	}

	return Verdict{Dropped: false, Reason: Delivered}
}

// statisticalDropProbability sums the congestion, streak, SNR-margin,
// RSSI-margin and interference terms, capped at 0.98.
func statisticalDropProbability(in Inputs) float64 {
	sfSteps := float64(in.SF - config.SF7)

	inflightRatio := float64(in.InFlight) / float64(in.MaxInFlight)
	congestion := math.Pow(inflightRatio, 2) * 0.5

	streak := math.Min(float64(in.LossStreak)*0.07, 0.35)

	snrMin := config.SnrMin(in.SF)
	snrMargin := math.Exp(-(in.Snr-snrMin)/(4.0+0.25*sfSteps)) * 0.6

	var rssiMargin float64
	sensitivity := config.Sensitivity(in.SF)
	if in.Rssi <= sensitivity+5 {
		margin := in.Rssi - sensitivity
		rssiMargin = math.Min(math.Abs(margin)/10, 1) * 0.4
	}

	interference := (0.03 * inflightRatio) * config.InterferenceFactor(in.SF)

	p := congestion + streak + snrMargin + rssiMargin + interference
	return math.Min(p, 0.98)
}

// refine maps a statistical-drop verdict to its most specific reason, in
// priority order: congestion, then persistent link failure, then marginal
// SNR, falling back to a generic random loss.
func refine(in Inputs, snrMin float64) Reason {
	inflightRatio := float64(in.InFlight) / float64(in.MaxInFlight)
	switch {
	case inflightRatio > 0.8:
		return NetworkCongestion
	case in.LossStreak > 3:
		return PersistentLinkFailure
	case in.Snr < snrMin+3:
		return MarginalSnr
	default:
		return RandomLoss
	}
}
