// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bss

import (
	"sync/atomic"
	"time"

	"go.fuchsia.dev/wlanstation/internal/eapol"
	"go.fuchsia.dev/wlanstation/internal/elements"
)

// Authenticator is the handshake session handle a BSS entry holds while a
// four-way handshake is in progress (spec §3 "authenticator-session
// handle (valid during handshake)"). internal/fourway.FourWay implements
// this; the state machine wires the two together so the registry itself
// never has to import the handshake package.
type Authenticator interface {
	HandleEAPOLKeyFrame(f *eapol.KeyFrame) error
	Complete() bool
}

// Entry is one observed access point (spec §3 "BSS entry").
type Entry struct {
	BSSID           [6]byte
	BeaconInterval  uint16
	Capabilities    uint16
	LastSeen        time.Time
	Channel         uint8
	RSSI            int8
	MaxRate         elements.Rate
	AID             uint16 // valid only while this entry is the active BSS.
	Rates           []elements.Rate
	SSID            string
	ElementsBlob    []byte // verbatim copy of the probe/beacon IE region.
	RSN             *elements.RSN
	Passphrase      string
	Keys            [2]*Key // slot 0 = pairwise, slot 1 = group.
	Authenticator   Authenticator
	LastUpdated     time.Time

	refCount int32
}

// Probe is the set of fields a probe response or beacon contributes to
// the registry; it is the registry's only input, keeping Entry mutation
// in one place (update_from_probe, spec §4.2).
type Probe struct {
	BSSID          [6]byte
	BeaconInterval uint16
	Capabilities   uint16
	Channel        uint8
	RSSI           int8
	Rates          []elements.Rate
	SSID           string
	ElementsBlob   []byte
	RSN            *elements.RSN
	Observed       time.Time
}

func newEntry(p Probe) *Entry {
	return &Entry{
		BSSID:          p.BSSID,
		BeaconInterval: p.BeaconInterval,
		Capabilities:   p.Capabilities,
		LastSeen:       p.Observed,
		Channel:        p.Channel,
		RSSI:           p.RSSI,
		Rates:          append([]elements.Rate(nil), p.Rates...),
		SSID:           p.SSID,
		ElementsBlob:   append([]byte(nil), p.ElementsBlob...),
		RSN:            p.RSN,
		LastUpdated:    p.Observed,
		refCount:       1, // spec I5: entries are born at one.
	}
}

// differsFrom reports whether applying p to e would change any of the
// fields spec §4.2 calls out as defining "a different network": beacon
// interval, capabilities, channel, rate count, SSID, or RSN.
func (e *Entry) differsFrom(p Probe) bool {
	if e.BeaconInterval != p.BeaconInterval || e.Capabilities != p.Capabilities || e.Channel != p.Channel {
		return true
	}
	if len(e.Rates) != len(p.Rates) {
		return true
	}
	if e.SSID != p.SSID {
		return true
	}
	return !rsnEqual(e.RSN, p.RSN)
}

func rsnEqual(a, b *elements.RSN) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return string(a.Bytes()) == string(b.Bytes())
	}
}

func (e *Entry) applyProbe(p Probe) {
	e.BeaconInterval = p.BeaconInterval
	e.Capabilities = p.Capabilities
	e.LastSeen = p.Observed
	e.Channel = p.Channel
	e.RSSI = p.RSSI
	e.Rates = append([]elements.Rate(nil), p.Rates...)
	e.SSID = p.SSID
	e.ElementsBlob = append([]byte(nil), p.ElementsBlob...)
	e.RSN = p.RSN
	e.LastUpdated = p.Observed
}

// AddRef increments the entry's reference count (spec I5: zero-to-one
// transitions are forbidden; every AddRef is on an already-live entry).
func (e *Entry) AddRef() {
	atomic.AddInt32(&e.refCount, 1)
}

// Release decrements the reference count and reports whether it reached
// zero, in which case the caller must zero-wipe the key array and drop
// the entry (spec §8 P5).
func (e *Entry) Release() bool {
	return atomic.AddInt32(&e.refCount, -1) == 0
}

// RefCount returns the current reference count (diagnostics/tests).
func (e *Entry) RefCount() int32 {
	return atomic.LoadInt32(&e.refCount)
}

// WipeKeys zeroes every installed key's material. Called on every path
// that destroys an entry, regardless of what triggered the destruction
// (spec §7).
func (e *Entry) WipeKeys() {
	for _, k := range e.Keys {
		if k != nil {
			k.Wipe()
		}
	}
}

// CopyForReconnect deep-copies every field except the key array and the
// authenticator handle, producing a fresh entry to serve as the target of
// a reconnection attempt (spec §4.2, §8 P6).
func CopyForReconnect(e *Entry) *Entry {
	cp := &Entry{
		BSSID:          e.BSSID,
		BeaconInterval: e.BeaconInterval,
		Capabilities:   e.Capabilities,
		LastSeen:       e.LastSeen,
		Channel:        e.Channel,
		RSSI:           e.RSSI,
		MaxRate:        e.MaxRate,
		AID:            e.AID,
		Rates:          append([]elements.Rate(nil), e.Rates...),
		SSID:           e.SSID,
		ElementsBlob:   append([]byte(nil), e.ElementsBlob...),
		RSN:            e.RSN,
		Passphrase:     e.Passphrase,
		LastUpdated:    e.LastUpdated,
		refCount:       1,
	}
	return cp
}
