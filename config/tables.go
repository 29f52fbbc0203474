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

// Package config carries the fixed, read-only lookup tables the medium
// model is built on. Nodes cannot override these; they are compiled into
// the server.
package config

// Fixed simulation-wide constants.
const (
	MaxRangeKm     = 25.0
	BandwidthHz    = 125000.0
	NoiseFigureDb  = 6.0
	FrequencyMHz   = 915.0
	MaxInFlight    = 10
	PreambleSymbol = 8
)

// SF is a LoRa spreading factor, 7 through 12.
type SF int

const (
	SF7  SF = 7
	SF8  SF = 8
	SF9  SF = 9
	SF10 SF = 10
	SF11 SF = 11
	SF12 SF = 12
)

// Valid reports whether sf is one of the six supported spreading factors.
func (sf SF) Valid() bool { return sf >= SF7 && sf <= SF12 }

// Index returns sf's zero-based index into the SF7..SF12 tables below.
func (sf SF) Index() int { return int(sf) - int(SF7) }

// SnrRange is the [min, max] SNR window (dB) achievable at a given SF.
type SnrRange struct {
	Min, Max float64
}

// SF_SENSITIVITY: receiver sensitivity (dBm) per spreading factor, SF7..SF12.
// Values follow the Semtech SX127x datasheet at BW=125kHz.
var sfSensitivity = [...]float64{
	-123,   // SF7
	-126,   // SF8
	-129,   // SF9
	-132,   // SF10
	-134.5, // SF11
	-137,   // SF12
}

// SF_SNR_RANGES: minimum demodulation SNR and a practical achievable ceiling
// per spreading factor, SF7..SF12.
var sfSnrRanges = [...]SnrRange{
	{Min: -7.5, Max: 10},  // SF7
	{Min: -10, Max: 10},   // SF8
	{Min: -12.5, Max: 10}, // SF9
	{Min: -15, Max: 10},   // SF10
	{Min: -17.5, Max: 10}, // SF11
	{Min: -20, Max: 10},   // SF12
}

// SF_MAX_RANGE_KM: practical maximum range (km) per spreading factor,
// SF7..SF12, always <= MaxRangeKm.
var sfMaxRangeKm = [...]float64{
	2,  // SF7
	4,  // SF8
	7,  // SF9
	11, // SF10
	16, // SF11
	22, // SF12
}

// sfFactor: interference scaling term used by the drop-decision engine,
// SF7..SF12.
var sfFactor = [...]float64{
	0.7, 0.8, 0.9, 1.0, 1.1, 1.2,
}

// Sensitivity returns the receiver sensitivity (dBm) for sf.
func Sensitivity(sf SF) float64 { return sfSensitivity[sf.Index()] }

// SnrRangeFor returns the [min, max] SNR window (dB) for sf.
func SnrRangeFor(sf SF) SnrRange { return sfSnrRanges[sf.Index()] }

// SnrMin returns the minimum demodulation SNR (dB) for sf.
func SnrMin(sf SF) float64 { return sfSnrRanges[sf.Index()].Min }

// SnrMax returns the practical SNR ceiling (dB) for sf.
func SnrMax(sf SF) float64 { return sfSnrRanges[sf.Index()].Max }

// MaxRangeFor returns the practical maximum range (km) for sf.
func MaxRangeFor(sf SF) float64 { return sfMaxRangeKm[sf.Index()] }

// InterferenceFactor returns the SF-scaled interference factor for sf.
func InterferenceFactor(sf SF) float64 { return sfFactor[sf.Index()] }

// WEATHER_ATTEN_DB_PER_KM: path-loss attenuation (dB/km) per weather key.
var weatherAttenDbPerKm = map[string]float64{
	"clear":    0.0,
	"fog":      0.3,
	"light":    0.6,
	"moderate": 1.2,
	"heavy":    2.5,
}

// DefaultWeather is used when a tx's meta omits the weather key.
const DefaultWeather = "clear"

// WeatherAtten returns the dB/km attenuation for a weather key, falling
// back to DefaultWeather's value for unknown/empty keys.
func WeatherAtten(key string) float64 {
	if v, ok := weatherAttenDbPerKm[key]; ok {
		return v
	}
	return weatherAttenDbPerKm[DefaultWeather]
}

// OBSTACLE_LOSS_DB: fixed obstacle penetration loss (dB) per obstacle key,
// covering glass, wood, brick, stone, and concrete/reinforced-concrete of
// varying thickness. "open" (line of sight, no obstacle) is zero loss.
var obstacleLossDb = map[string]float64{
	"open":                      0.0,
	"glass":                     2.0,
	"wood":                      4.0,
	"brick":                     8.0,
	"stone":                     10.0,
	"concrete_thin":             12.0,
	"concrete_thick":            20.0,
	"reinforced_concrete_thin":  24.0,
	"reinforced_concrete_thick": 35.0,
}

// DefaultObstacle is used when a tx's meta omits the obstacle key.
const DefaultObstacle = "open"

// ObstacleLoss returns the dB penetration loss for an obstacle key, falling
// back to DefaultObstacle's value (zero) for unknown/empty keys.
func ObstacleLoss(key string) float64 {
	if v, ok := obstacleLossDb[key]; ok {
		return v
	}
	return obstacleLossDb[DefaultObstacle]
}

// Defaults for meta fields missing from a tx frame.
const (
	DefaultAQI     = 50
	DefaultSF      = SF7
	DefaultTxPower = 23.0 // dBm
)
