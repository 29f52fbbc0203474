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

// Package dispatcher implements the medium dispatcher (C4): for one tx
// frame it resolves targets, invokes the link-budget (C1), airtime (C2)
// and drop-decision (C3) models per target, and writes delivered frames to
// surviving targets' transports.
package dispatcher

import (
	"encoding/json"
	"math"
	"time"

	"github.com/loranet/lorasim-server/config"
	"github.com/loranet/lorasim-server/dropmodel"
	"github.com/loranet/lorasim-server/logger"
	"github.com/loranet/lorasim-server/radiomodel"
	"github.com/loranet/lorasim-server/registry"
	"github.com/loranet/lorasim-server/wire"
)

// Dispatcher routes tx frames to their resolved targets against a shared
// Registry.
type Dispatcher struct {
	reg *registry.Registry
}

// New creates a Dispatcher bound to reg.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Dispatch resolves targets for one tx frame from an already-registered
// sender and delivers to each surviving one.
func (d *Dispatcher) Dispatch(tx *wire.TxFrame) {
	sender, ok := d.reg.Lookup(tx.From)
	if !ok {
		logger.Warnf("dispatch: sender %d not registered, dropping tx", tx.From)
		return
	}

	targets, stopReason := d.resolveTargets(tx, sender)
	if stopReason != "" {
		logger.Warnf("dispatch: tx from %d dropped: %s", tx.From, stopReason)
		return
	}
	if len(targets) == 0 {
		return
	}

	inFlight := d.reg.IncInFlight()
	d.reg.ObserveTxReceived()
	defer d.reg.DecInFlight()

	for _, targetID := range targets {
		d.deliverOne(tx, sender, targetID, inFlight)
	}
}

// resolveTargets resolves a tx frame's destination to concrete targets.
// An empty stopReason means dispatch
// should proceed over targets (empty, and possibly nil, for a broadcast
// with no peers); a non-empty stopReason means "not a per-receiver
// drop -- no targets" and dispatch must stop entirely.
func (d *Dispatcher) resolveTargets(tx *wire.TxFrame, sender registry.Node) (targets []wire.NodeID, stopReason string) {
	dest := tx.Meta.Destination
	if dest == wire.BroadcastNodeID {
		return d.reg.Peers(sender.Frequency, tx.From), ""
	}

	target, ok := d.reg.Lookup(dest)
	if !ok {
		return nil, "INVALID_DESTINATION"
	}
	if target.Frequency != sender.Frequency {
		return nil, "FREQ_MISMATCH"
	}
	return []wire.NodeID{dest}, ""
}

// deliverOne runs the per-target delivery pipeline: distance, link budget,
// C3, busy-window reservation, sleep, and write.
func (d *Dispatcher) deliverOne(tx *wire.TxFrame, sender registry.Node, targetID wire.NodeID, inFlight int32) {
	target, ok := d.reg.Lookup(targetID)
	if !ok {
		// the target disconnected between resolution and delivery.
		return
	}

	link := radiomodel.Link{
		Sender:     tx.From,
		Receiver:   targetID,
		SenderLoc:  sender.Location,
		RecvLoc:    target.Location,
		TxPowerDbm: tx.Meta.ResolvedTxPower(),
		AQI:        tx.Meta.ResolvedAQI(),
		Weather:    tx.Meta.ResolvedWeather(),
		Obstacle:   tx.Meta.ResolvedObstacle(),
		SF:         tx.Meta.ResolvedSF(),
	}

	dist := radiomodel.DistanceKm(sender.Location, target.Location)
	rssi := radiomodel.RSSI(link, dist)
	snr := radiomodel.SNR(link, dist, rssi)
	delayMs := radiomodel.DeliveryDelayMs(link, dist, snr, len(tx.Data))

	now := time.Now()
	until := now.Add(time.Duration(delayMs * float64(time.Millisecond)))

	verdict := dropmodel.Evaluate(dropmodel.Inputs{
		SF:          link.SF,
		DistKm:      dist,
		Rssi:        rssi,
		Snr:         snr,
		Collision:   d.reg.IsBusy(targetID, now),
		InFlight:    int(inFlight),
		MaxInFlight: config.MaxInFlight,
		LossStreak:  d.reg.Streak(tx.From, targetID),
	})
	// only an admitted delivery reserves the receiver; ReserveIfFree is the
	// final collision check, since another sender may have reserved it
	// after the IsBusy check above.
	if !verdict.Dropped && !d.reg.ReserveIfFree(targetID, now, until) {
		verdict = dropmodel.Verdict{Dropped: true, Reason: dropmodel.Collision}
	}

	if verdict.Dropped {
		d.reg.RecordDrop(tx.From, targetID)
		d.reg.ObserveDropped(string(verdict.Reason))
		logger.Warnf("dispatch: %d->%d dropped: %s rssi=%.2f snr=%.2f dist=%.3fkm delay=%.2fms",
			tx.From, targetID, verdict.Reason, rssi, snr, dist, delayMs)
		return
	}
	d.reg.RecordKeep(tx.From, targetID)

	delivered := wire.DeliveredFrame{
		Type: wire.FrameTx,
		From: tx.From,
		Data: tx.Data,
		Meta: tx.Meta,
		Rssi: round2(rssi),
		Snr:  round2(snr),
	}

	time.Sleep(time.Duration(delayMs * float64(time.Millisecond)))

	line, err := json.Marshal(delivered)
	if err != nil {
		logger.Warnf("dispatch: encode delivered frame for %d failed: %v", targetID, err)
		return
	}
	line = append(line, '\n')

	if _, err := target.Conn.Write(line); err != nil {
		logger.Warnf("dispatch: write to %d failed: %v", targetID, err)
		return
	}
	d.reg.ObserveDelivered()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
