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

package dropmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loranet/lorasim-server/config"
)

func baseInputs() Inputs {
	return Inputs{
		SF:          config.SF7,
		DistKm:      1,
		Rssi:        -70,
		Snr:         8,
		MaxInFlight: config.MaxInFlight,
	}
}

func TestOutOfRangeAlwaysDrops(t *testing.T) {
	in := baseInputs()
	in.DistKm = 26
	v := Evaluate(in)
	assert.True(t, v.Dropped)
	assert.Equal(t, OutOfRange, v.Reason)
}

func TestOutOfRangeTakesPriorityOverCollision(t *testing.T) {
	in := baseInputs()
	in.DistKm = 26
	in.Collision = true
	v := Evaluate(in)
	assert.Equal(t, OutOfRange, v.Reason)
}

func TestCollisionDrops(t *testing.T) {
	in := baseInputs()
	in.Collision = true
	v := Evaluate(in)
	assert.True(t, v.Dropped)
	assert.Equal(t, Collision, v.Reason)
}

func TestRssiBelowSensitivityDrops(t *testing.T) {
	in := baseInputs()
	in.Rssi = config.Sensitivity(config.SF7) - 1
	v := Evaluate(in)
	assert.True(t, v.Dropped)
	assert.Equal(t, RssiTooLow, v.Reason)
}

func TestSnrBelowMinimumDrops(t *testing.T) {
	in := baseInputs()
	in.Snr = config.SnrMin(config.SF7) - 1
	v := Evaluate(in)
	assert.True(t, v.Dropped)
	assert.Equal(t, SnrTooLow, v.Reason)
}

func TestCleanShortLinkIsAlmostAlwaysDelivered(t *testing.T) {
	in := baseInputs()
	delivered := 0
	for i := 0; i < 200; i++ {
		if !Evaluate(in).Dropped {
			delivered++
		}
	}
	assert.Greater(t, delivered, 150)
}

func TestHighInFlightRefinesToNetworkCongestion(t *testing.T) {
	in := baseInputs()
	in.InFlight = 10
	in.MaxInFlight = 10
	in.Snr = config.SnrMin(config.SF7) + 0.01 // force the statistical branch to matter
	dropped := false
	var reason Reason
	for i := 0; i < 500 && !dropped; i++ {
		v := Evaluate(in)
		if v.Dropped {
			dropped = true
			reason = v.Reason
		}
	}
	assert.True(t, dropped)
	assert.Equal(t, NetworkCongestion, reason)
}

func TestPersistentLinkFailureRefinement(t *testing.T) {
	in := baseInputs()
	in.LossStreak = 10
	in.Snr = config.SnrMin(config.SF7) + 0.01
	dropped := false
	var reason Reason
	for i := 0; i < 500 && !dropped; i++ {
		v := Evaluate(in)
		if v.Dropped {
			dropped = true
			reason = v.Reason
		}
	}
	assert.True(t, dropped)
	assert.Equal(t, PersistentLinkFailure, reason)
}

func TestStatisticalDropProbabilityNeverExceedsCap(t *testing.T) {
	in := Inputs{
		SF:          config.SF12,
		DistKm:      1,
		Rssi:        -200,
		Snr:         -50,
		InFlight:    10,
		MaxInFlight: config.MaxInFlight,
		LossStreak:  100,
	}
	p := statisticalDropProbability(in)
	assert.LessOrEqual(t, p, 0.98)
}

func TestRangeRatioDropIsPossibleBeyondSFMaxRange(t *testing.T) {
	in := baseInputs()
	in.SF = config.SF7
	in.DistKm = config.MaxRangeFor(config.SF7) * 2.5 // well beyond this SF's practical range
	in.Snr = 9
	in.Rssi = -70

	droppedAtAll := false
	for i := 0; i < 300; i++ {
		if Evaluate(in).Dropped {
			droppedAtAll = true
			break
		}
	}
	assert.True(t, droppedAtAll)
}
