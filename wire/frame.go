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

// Package wire defines the line-delimited JSON frames exchanged between
// simulated nodes and the medium server. Frames are typed variants
// (Register | Tx), not a duck-typed dict: a decode failure is reported to
// the caller so the session can skip the line silently rather than
// propagate an error.
package wire

import (
	"encoding/json"

	"github.com/loranet/lorasim-server/config"
)

// NodeID identifies a simulated node, 0-254. 255 is reserved as the
// broadcast destination and never appears as a registered node.
type NodeID = uint8

// BroadcastNodeID is the reserved destination id meaning "all same-frequency
// peers except the sender".
const BroadcastNodeID NodeID = 0xFF

// FrameType names the wire frame's "type" discriminator field.
type FrameType string

const (
	FrameRegister FrameType = "register"
	FrameTx       FrameType = "tx"
)

type envelope struct {
	Type FrameType `json:"type"`
}

// RegisterFrame is sent once by a node after connecting.
type RegisterFrame struct {
	Type      FrameType  `json:"type"`
	NodeID    NodeID     `json:"node_id"`
	Location  [2]float64 `json:"location"` // [x_km, y_km]
	Frequency float64    `json:"frequency"`
}

// Meta carries per-transmission overrides, most of which are optional and
// fall back to a documented default when absent.
type Meta struct {
	Destination NodeID   `json:"destination"`
	Node        NodeID   `json:"node"`
	Identifier  uint8    `json:"identifier"`
	Flags       uint8    `json:"flags"`
	TxPower     *float64 `json:"tx_power,omitempty"`
	AQI         *int     `json:"aqi,omitempty"`
	Weather     *string  `json:"weather,omitempty"`
	Obstacle    *string  `json:"obstacle,omitempty"`
	SF          *int     `json:"sf,omitempty"`
	Timestamp   float64  `json:"timestamp"`
}

// AckRequested reports whether the reserved ACK bit (0x80) is set. The
// server forwards this bit untouched and never interprets it.
func (m Meta) AckRequested() bool { return m.Flags&0x80 != 0 }

// ResolvedTxPower returns the tx_power meta field or the documented default.
func (m Meta) ResolvedTxPower() float64 {
	if m.TxPower != nil {
		return *m.TxPower
	}
	return config.DefaultTxPower
}

// ResolvedAQI returns the aqi meta field or the documented default.
func (m Meta) ResolvedAQI() int {
	if m.AQI != nil {
		return *m.AQI
	}
	return config.DefaultAQI
}

// ResolvedWeather returns the weather meta field or the documented default.
func (m Meta) ResolvedWeather() string {
	if m.Weather != nil {
		return *m.Weather
	}
	return config.DefaultWeather
}

// ResolvedObstacle returns the obstacle meta field or the documented default.
func (m Meta) ResolvedObstacle() string {
	if m.Obstacle != nil {
		return *m.Obstacle
	}
	return config.DefaultObstacle
}

// ResolvedSF returns the sf meta field if it is a valid SF, or the
// documented default if absent or out of range.
func (m Meta) ResolvedSF() config.SF {
	if m.SF == nil {
		return config.DefaultSF
	}
	sf := config.SF(*m.SF)
	if !sf.Valid() {
		return config.DefaultSF
	}
	return sf
}

// TxFrame is a transmission request from a node.
type TxFrame struct {
	Type FrameType `json:"type"`
	From NodeID    `json:"from"`
	Data string    `json:"data"`
	Meta Meta      `json:"meta"`
}

// DeliveredFrame is a TxFrame annotated with the server-computed RSSI/SNR
// for one specific receiver. Each receiver gets its own DeliveredFrame even
// within one broadcast, since RSSI/SNR differ per link.
type DeliveredFrame struct {
	Type FrameType `json:"type"`
	From NodeID    `json:"from"`
	Data string    `json:"data"`
	Meta Meta      `json:"meta"`
	Rssi float64   `json:"rssi"`
	Snr  float64   `json:"snr"`
}

// Decode parses one newline-delimited JSON line into its typed frame
// variant. It returns an error for malformed JSON or an unrecognized
// "type" value; callers are expected to skip the line silently on error
// rather than treat the connection as broken.
func Decode(line []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case FrameRegister:
		var f RegisterFrame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case FrameTx:
		var f TxFrame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, errUnknownFrameType(env.Type)
	}
}

type errUnknownFrameType FrameType

func (e errUnknownFrameType) Error() string {
	return "wire: unknown frame type " + string(e)
}
