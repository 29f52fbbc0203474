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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loranet/lorasim-server/config"
)

func clearLink() Link {
	return Link{
		Sender:     1,
		Receiver:   2,
		SenderLoc:  [2]float64{0, 0},
		RecvLoc:    [2]float64{1, 0},
		TxPowerDbm: 23,
		AQI:        50,
		Weather:    "clear",
		Obstacle:   "open",
		SF:         config.SF7,
	}
}

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 1.0, DistanceKm([2]float64{0, 0}, [2]float64{1, 0}), 1e-9)
	assert.InDelta(t, 5.0, DistanceKm([2]float64{0, 0}, [2]float64{3, 4}), 1e-9)
}

func TestRSSIWithinClampedRange(t *testing.T) {
	l := clearLink()
	for i := 0; i < 50; i++ {
		rssi := RSSI(l, DistanceKm(l.SenderLoc, l.RecvLoc))
		assert.GreaterOrEqual(t, rssi, -150.0)
		assert.LessOrEqual(t, rssi, -35.0)
	}
}

func TestClearUnicastInRangeRSSIWindow(t *testing.T) {
	l := clearLink()
	dist := DistanceKm(l.SenderLoc, l.RecvLoc)
	for i := 0; i < 50; i++ {
		rssi := RSSI(l, dist)
		assert.GreaterOrEqual(t, rssi, -100.0)
		assert.LessOrEqual(t, rssi, -60.0)
	}
}

func TestSNRMeetsMinimumForClearShortLink(t *testing.T) {
	l := clearLink()
	dist := DistanceKm(l.SenderLoc, l.RecvLoc)
	for i := 0; i < 50; i++ {
		rssi := RSSI(l, dist)
		snr := SNR(l, dist, rssi)
		assert.GreaterOrEqual(t, snr, config.SnrMin(l.SF))
	}
}

func TestPathLossIncreasesWithDistance(t *testing.T) {
	l := clearLink()
	near := pathLossDb(l, 1)
	far := pathLossDb(l, 10)
	assert.Greater(t, far, near)
}

func TestObstacleIncreasesPathLoss(t *testing.T) {
	open := clearLink()
	blocked := clearLink()
	blocked.Obstacle = "reinforced_concrete_thick"

	openLoss := pathLossDb(open, 2)
	blockedLoss := pathLossDb(blocked, 2)
	assert.Greater(t, blockedLoss, openLoss)
}

func TestPathLossFloor(t *testing.T) {
	l := clearLink()
	loss := pathLossDb(l, 0.0001)
	assert.GreaterOrEqual(t, loss, 32.0)
}
