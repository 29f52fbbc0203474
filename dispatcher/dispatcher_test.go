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

package dispatcher

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loranet/lorasim-server/registry"
	"github.com/loranet/lorasim-server/wire"
)

func registerPipe(t *testing.T, reg *registry.Registry, id wire.NodeID, loc [2]float64, freq float64) (server net.Conn, readLine func() []byte) {
	t.Helper()
	client, srv := net.Pipe()
	reg.Register(id, srv, loc, freq)

	lines := make(chan []byte, 8)
	go func() {
		r := bufio.NewReader(client)
		for {
			b, err := r.ReadBytes('\n')
			if len(b) > 0 {
				lines <- b
			}
			if err != nil {
				close(lines)
				return
			}
		}
	}()

	return srv, func() []byte {
		select {
		case b, ok := <-lines:
			if !ok {
				return nil
			}
			return b
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivered frame")
			return nil
		}
	}
}

func TestDispatchClearUnicastInRangeIsDelivered(t *testing.T) {
	reg := registry.New()
	registerPipe(t, reg, 1, [2]float64{0, 0}, 915)
	_, readLine := registerPipe(t, reg, 2, [2]float64{1, 0}, 915)

	d := New(reg)
	tx := &wire.TxFrame{
		Type: wire.FrameTx,
		From: 1,
		Data: "0123456789abcdef",
		Meta: wire.Meta{Destination: 2, Timestamp: 1},
	}

	done := make(chan struct{})
	go func() { d.Dispatch(tx); close(done) }()

	line := readLine()
	require.NotNil(t, line)

	var delivered wire.DeliveredFrame
	require.NoError(t, json.Unmarshal(line, &delivered))
	assert.Equal(t, wire.NodeID(1), delivered.From)
	assert.GreaterOrEqual(t, delivered.Rssi, -100.0)
	assert.LessOrEqual(t, delivered.Rssi, -60.0)

	<-done
	assert.Equal(t, int32(0), reg.InFlight())
}

func TestDispatchFrequencyMismatchStopsWithNoDelivery(t *testing.T) {
	reg := registry.New()
	registerPipe(t, reg, 1, [2]float64{0, 0}, 915)
	_, readLine := registerPipe(t, reg, 2, [2]float64{1, 0}, 868)

	d := New(reg)
	tx := &wire.TxFrame{From: 1, Data: "x", Meta: wire.Meta{Destination: 2}}
	d.Dispatch(tx)

	_ = readLine // nothing should have been written: dispatch stops before any delivery
	assert.Equal(t, int32(0), reg.InFlight())
}

func TestDispatchInvalidDestinationStops(t *testing.T) {
	reg := registry.New()
	registerPipe(t, reg, 1, [2]float64{0, 0}, 915)

	d := New(reg)
	tx := &wire.TxFrame{From: 1, Data: "x", Meta: wire.Meta{Destination: 99}}
	d.Dispatch(tx)

	assert.Equal(t, int32(0), reg.InFlight())
}

func TestDispatchOutOfRangeDropsWithoutWrite(t *testing.T) {
	reg := registry.New()
	registerPipe(t, reg, 1, [2]float64{0, 0}, 915)
	registerPipe(t, reg, 2, [2]float64{30, 0}, 915) // 30km > 25km hard cap

	d := New(reg)
	tx := &wire.TxFrame{From: 1, Data: "x", Meta: wire.Meta{Destination: 2}}
	d.Dispatch(tx)

	assert.Equal(t, 1, reg.Streak(1, 2))
}

func TestDispatchBroadcastFansOutToSameFrequencyPeersOnly(t *testing.T) {
	reg := registry.New()
	registerPipe(t, reg, 1, [2]float64{0, 0}, 915)
	_, read2 := registerPipe(t, reg, 2, [2]float64{0.5, 0}, 915)
	_, read3 := registerPipe(t, reg, 3, [2]float64{0.5, 0.5}, 868)

	d := New(reg)
	tx := &wire.TxFrame{From: 1, Data: "hi", Meta: wire.Meta{Destination: wire.BroadcastNodeID}}

	done := make(chan struct{})
	go func() { d.Dispatch(tx); close(done) }()

	line := read2()
	require.NotNil(t, line)
	<-done

	_ = read3 // node 3 is on a different frequency and must not receive anything
}

func TestDispatchCollisionDropsSecondArrivalInBusyWindow(t *testing.T) {
	reg := registry.New()
	registerPipe(t, reg, 1, [2]float64{0, 0}, 915)
	registerPipe(t, reg, 2, [2]float64{1, 0}, 915)

	reg.Reserve(2, time.Now().Add(time.Hour))

	d := New(reg)
	tx := &wire.TxFrame{From: 1, Data: "x", Meta: wire.Meta{Destination: 2}}
	d.Dispatch(tx)

	assert.Equal(t, 1, reg.Streak(1, 2))
}

func TestDispatchConcurrentSendersToSameReceiverYieldExactlyOneDelivery(t *testing.T) {
	reg := registry.New()
	registerPipe(t, reg, 1, [2]float64{0, 0}, 915)
	registerPipe(t, reg, 3, [2]float64{0, 0}, 915)
	_, readLine := registerPipe(t, reg, 2, [2]float64{0.2, 0}, 915)

	d := New(reg)
	txFrom1 := &wire.TxFrame{From: 1, Data: "a", Meta: wire.Meta{Destination: 2}}
	txFrom3 := &wire.TxFrame{From: 3, Data: "b", Meta: wire.Meta{Destination: 2}}

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); <-start; d.Dispatch(txFrom1) }()
	go func() { defer wg.Done(); <-start; d.Dispatch(txFrom3) }()
	close(start)
	wg.Wait()

	line := readLine()
	require.NotNil(t, line)

	var delivered wire.DeliveredFrame
	require.NoError(t, json.Unmarshal(line, &delivered))
	winner := delivered.From

	var loser wire.NodeID
	if winner == 1 {
		loser = 3
	} else {
		loser = 1
	}
	assert.Equal(t, 1, reg.Streak(loser, 2), "the losing sender must be recorded as a dropped (collision) attempt")
	assert.Equal(t, 0, reg.Streak(winner, 2), "the winning sender must not be recorded as dropped")
}
