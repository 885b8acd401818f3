// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bss implements the BSS registry (spec §4.2, C1): the cache of
// observed access points, each carrying its own cipher keys, rate set, and
// parsed RSN descriptor. Registry methods assume the caller already holds
// the owning link's lock (spec §5) — the registry has no lock of its own.
package bss

import (
	"sync/atomic"
)

// KeyFlags selects a key's install direction.
type KeyFlags uint8

const (
	KeyFlagPairwise KeyFlags = 1 << iota
	KeyFlagGroup
)

// Key is one cipher key installed into a BSS entry's key array (spec §3
// Key). TxPN and the receive replay counter are manipulated without the
// link lock (spec §5 "BSS-entry reference counts are atomic and
// manipulated without holding the link lock" — the same applies to key
// counters, which the data path touches from the send/receive fast path).
type Key struct {
	Flags    KeyFlags
	KeyID    uint8
	Material []byte

	txPN     uint64 // 48-bit transmit packet-number counter.
	rxReplay uint64 // 48-bit receive replay counter.
}

// NewKey constructs a key ready for installation. The replay counter
// starts at zero; the first accepted frame's packet number must be
// strictly greater than zero (802.11 PNs start at 1).
func NewKey(flags KeyFlags, keyID uint8, material []byte) *Key {
	return &Key{Flags: flags, KeyID: keyID, Material: append([]byte(nil), material...)}
}

// NextTxPN atomically returns the next packet number to use for an
// outgoing frame protected by this key, starting at 1.
func (k *Key) NextTxPN() uint64 {
	return atomic.AddUint64(&k.txPN, 1)
}

// CheckAndAdvanceReplay reports whether pn is strictly greater than the
// key's current replay counter and, if so, atomically advances the
// counter to pn (spec §8 P3). The counter is only ever advanced on
// success.
func (k *Key) CheckAndAdvanceReplay(pn uint64) bool {
	for {
		cur := atomic.LoadUint64(&k.rxReplay)
		if pn <= cur {
			return false
		}
		if atomic.CompareAndSwapUint64(&k.rxReplay, cur, pn) {
			return true
		}
	}
}

// ReplayCounter returns the key's current replay counter (for
// diagnostics/tests).
func (k *Key) ReplayCounter() uint64 {
	return atomic.LoadUint64(&k.rxReplay)
}

// Wipe zeroes the key material in place (spec §8 P5: a key array is
// zeroed before its backing memory is released).
func (k *Key) Wipe() {
	for i := range k.Material {
		k.Material[i] = 0
	}
}
