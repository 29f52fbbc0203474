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

package radiomodel

import (
	"math"

	"github.com/loranet/lorasim-server/config"
	"github.com/loranet/lorasim-server/prng"
)

// TimeOnAirMs returns the Semtech time-on-air (ms) for an SF/payload-length
// pair. preambleSymbols is fixed at config.PreambleSymbol; coding rate is
// fixed at 4/5 (CR=1); the implicit-header flag is always 0, since the wire
// frames always carry an explicit header.
func TimeOnAirMs(sf config.SF, payloadLen int) float64 {
	const (
		codingRate = 1
		implicit   = 0
	)
	de := 0.0
	if sf >= config.SF11 {
		de = 1
	}

	symbolTimeS := math.Pow(2, float64(sf)) / config.BandwidthHz

	numerator := 8*float64(payloadLen) - 4*float64(sf) + 28 + 16 - 20*implicit
	denominator := 4 * (float64(sf) - 2*de)
	nPayload := 8 + math.Max(math.Ceil(numerator/denominator)*(codingRate+4), 0)

	return (float64(config.PreambleSymbol) + 4.25 + nPayload) * symbolTimeS * 1000
}

// snrPenaltyMs returns the sigmoid SNR penalty term added to time-on-air
// as SNR approaches the demodulation floor.
func snrPenaltyMs(sf config.SF, snr float64) float64 {
	const (
		maxPenalty = 50.0
		k          = 1.5
	)
	snrMin := config.SnrMin(sf)
	snrMax := config.SnrMax(sf)
	mid := snrMin + (snrMax-snrMin)/3
	return maxPenalty / (1 + math.Exp(k*(snr-mid)))
}

// mediaFactorMs returns the weather/obstacle media-factor term, applied to
// the base SF-scaled processing time.
func mediaFactorMs(sf config.SF, weather, obstacle string) float64 {
	sfSteps := float64(sf - config.SF7)

	weatherFactor := (1 + config.WeatherAtten(weather)*0.1) * (1 - 0.01*sfSteps)
	obstacleFactor := (1 + config.ObstacleLoss(obstacle)*0.01) * (1 - 0.01*sfSteps)

	base := 2 + 1.5*sfSteps
	return weatherFactor * obstacleFactor * base
}

// DeliveryDelayMs returns the total time (ms) from transmission start to
// delivery at the receiver for l, given distKm, snr (as returned by SNR)
// and payloadLen. This is the value the dispatcher sleeps before writing
// the delivered frame, and the interval added to the receiver's
// busy-until deadline.
func DeliveryDelayMs(l Link, distKm, snr float64, payloadLen int) float64 {
	delay := TimeOnAirMs(l.SF, payloadLen)
	delay += distKm / 300000 * 1000
	delay += snrPenaltyMs(l.SF, snr)
	delay += mediaFactorMs(l.SF, l.Weather, l.Obstacle)
	delay += prng.Jitter(0.5, 3.0) * (float64(l.SF) / 7)
	return delay
}
