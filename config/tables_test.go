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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensitivityMonotonicallyDecreasing(t *testing.T) {
	prev := Sensitivity(SF7)
	for sf := SF8; sf <= SF12; sf++ {
		cur := Sensitivity(sf)
		assert.Less(t, cur, prev, "higher SF must have better (lower) sensitivity")
		prev = cur
	}
}

func TestMaxRangeMonotonicallyIncreasing(t *testing.T) {
	prev := MaxRangeFor(SF7)
	for sf := SF8; sf <= SF12; sf++ {
		cur := MaxRangeFor(sf)
		assert.Greater(t, cur, prev)
		assert.LessOrEqual(t, cur, MaxRangeKm)
		prev = cur
	}
}

func TestWeatherAttenUnknownFallsBackToClear(t *testing.T) {
	assert.Equal(t, WeatherAtten("clear"), WeatherAtten("nonexistent-key"))
}

func TestObstacleLossUnknownFallsBackToOpen(t *testing.T) {
	assert.Equal(t, 0.0, ObstacleLoss("nonexistent-key"))
	assert.Equal(t, 0.0, ObstacleLoss("open"))
}

func TestSFValid(t *testing.T) {
	assert.True(t, SF7.Valid())
	assert.True(t, SF12.Valid())
	assert.False(t, SF(6).Valid())
	assert.False(t, SF(13).Valid())
}
