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

// Package registry is the medium server's single owning shared-state value
// (C6): connected nodes, their locations/frequencies, receiver-busy
// deadlines, per-pair loss streaks, and the in-flight transmission counter.
// All table access is serialized through one mutex; the in-flight counter
// is separately atomic. No other package-level singleton holds server
// state.
package registry

import (
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loranet/lorasim-server/wire"
)

// Node is the authoritative record for one connected, registered node.
type Node struct {
	ID        wire.NodeID
	Conn      net.Conn
	Location  [2]float64
	Frequency float64
}

type pairKey struct {
	Sender, Receiver wire.NodeID
}

// Registry owns all shared state the medium model reads and mutates while
// dispatching transmissions.
type Registry struct {
	mu           sync.Mutex
	nodes        map[wire.NodeID]*Node
	receiverBusy map[wire.NodeID]time.Time
	lossStreak   map[pairKey]int
	inFlight     int32

	metrics *metrics
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		nodes:        make(map[wire.NodeID]*Node),
		receiverBusy: make(map[wire.NodeID]time.Time),
		lossStreak:   make(map[pairKey]int),
		metrics:      newMetrics(),
	}
}

// Register inserts or replaces the node record for id. If a connection was
// already registered under id, it is returned (and removed from the table)
// so the caller can close it: a second register with an existing id
// replaces the prior entry, and the stale session's transport must not be
// left dangling.
func (r *Registry) Register(id wire.NodeID, conn net.Conn, location [2]float64, frequency float64) (stale net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.nodes[id]; ok {
		stale = prev.Conn
	}
	r.nodes[id] = &Node{ID: id, Conn: conn, Location: location, Frequency: frequency}
	r.metrics.connectedNodes.Set(float64(len(r.nodes)))
	return stale
}

// Unregister removes the node record for id, if present and still owned by
// conn (a session that lost a register-replace race must not evict the
// newer registration on its way out).
func (r *Registry) Unregister(id wire.NodeID, conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[id]; ok && n.Conn == conn {
		delete(r.nodes, id)
		r.metrics.connectedNodes.Set(float64(len(r.nodes)))
	}
}

// Lookup returns the node record for id, if registered.
func (r *Registry) Lookup(id wire.NodeID) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Peers returns the ids of all registered nodes listening on frequency,
// excluding excludeID, sorted by id. Sorting gives broadcast fan-out a
// consistent order within one call.
func (r *Registry) Peers(frequency float64, excludeID wire.NodeID) []wire.NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []wire.NodeID
	for id, n := range r.nodes {
		if id == excludeID {
			continue
		}
		if n.Frequency == frequency {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BusyUntil returns the time the given receiver becomes free, and whether
// it has ever been reserved.
func (r *Registry) BusyUntil(id wire.NodeID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.receiverBusy[id]
	return t, ok
}

// IsBusy reports whether receiver id is reserved at instant now, the
// collision check a delivery attempt must pass first.
func (r *Registry) IsBusy(id wire.NodeID, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.receiverBusy[id]
	return ok && now.Before(until)
}

// Reserve commits receiver id to a single incoming packet until until.
// Callers only call Reserve after an admission decision, with until in the
// future, so the stored deadline only ever moves forward.
func (r *Registry) Reserve(id wire.NodeID, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.receiverBusy[id] = until
}

// ReserveIfFree atomically checks whether receiver id is busy at now and,
// if not, reserves it until until in the same lock hold. ok is false if id
// was already reserved past now, in which case the table is left untouched.
// Callers must use ok as the collision verdict instead of a separate
// IsBusy+Reserve pair, which would let two concurrent callers both observe
// "free" before either writes its reservation.
func (r *Registry) ReserveIfFree(id wire.NodeID, now, until time.Time) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if busyUntil, reserved := r.receiverBusy[id]; reserved && now.Before(busyUntil) {
		return false
	}
	r.receiverBusy[id] = until
	return true
}

// RecordDrop increments and returns the loss streak for (sender,receiver).
func (r *Registry) RecordDrop(sender, receiver wire.NodeID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{sender, receiver}
	r.lossStreak[k]++
	return r.lossStreak[k]
}

// RecordKeep resets the loss streak for (sender,receiver) to zero.
func (r *Registry) RecordKeep(sender, receiver wire.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.lossStreak, pairKey{sender, receiver})
}

// Streak returns the current loss streak for (sender,receiver).
func (r *Registry) Streak(sender, receiver wire.NodeID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lossStreak[pairKey{sender, receiver}]
}

// IncInFlight increments the in-flight transmission counter and returns its
// new value.
func (r *Registry) IncInFlight() int32 {
	v := atomic.AddInt32(&r.inFlight, 1)
	r.metrics.inFlight.Set(float64(v))
	return v
}

// DecInFlight decrements the in-flight transmission counter.
func (r *Registry) DecInFlight() {
	v := atomic.AddInt32(&r.inFlight, -1)
	r.metrics.inFlight.Set(float64(v))
}

// InFlight returns the current in-flight transmission count.
func (r *Registry) InFlight() int32 {
	return atomic.LoadInt32(&r.inFlight)
}

// CloseAll closes every currently-registered transport under the registry
// lock, as part of orderly shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, n := range r.nodes {
		_ = n.Conn.Close()
		delete(r.nodes, id)
	}
	r.metrics.connectedNodes.Set(0)
}

// ObserveTxReceived, ObserveDelivered and ObserveDropped feed the
// Prometheus counters exposed on the server's metrics endpoint (see
// SPEC_FULL.md "DOMAIN STACK"). They carry no protocol meaning.
func (r *Registry) ObserveTxReceived() { r.metrics.txReceived.Inc() }
func (r *Registry) ObserveDelivered()  { r.metrics.txDelivered.Inc() }
func (r *Registry) ObserveDropped(reason string) {
	r.metrics.txDropped.WithLabelValues(reason).Inc()
}
