// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bss

import (
	"time"

	"go.fuchsia.dev/wlanstation/internal/elements"
)

// Registry is the link's BSS cache (spec §4.2, C1). Every method assumes
// the caller holds the owning link's lock; Registry has no lock of its
// own (spec §5).
type Registry struct {
	entries map[[6]byte]*Entry
	active  *Entry // a convention, not a counted reference (spec §9 WeakBss).
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[[6]byte]*Entry)}
}

// Lookup returns the entry for bssid without taking a reference (spec
// §4.2 lookup).
func (r *Registry) Lookup(bssid [6]byte) *Entry {
	return r.entries[bssid]
}

// SetActive sets the active-BSS pointer. It does not take or release a
// reference: the caller is expected to already hold one (typically via
// the list's own reference, upgraded through GetActive or created fresh
// by UpdateFromProbe).
func (r *Registry) SetActive(e *Entry) {
	r.active = e
}

// ClearActive clears the active-BSS pointer (spec §8 P4, part of leave).
func (r *Registry) ClearActive() {
	r.active = nil
}

// Active returns the current active-BSS pointer without taking a
// reference.
func (r *Registry) Active() *Entry {
	return r.active
}

// GetActive returns the active entry with a reference taken under the
// caller's lock (spec §4.2 get_active), or nil if there is none.
func (r *Registry) GetActive() *Entry {
	if r.active == nil {
		return nil
	}
	r.active.AddRef()
	return r.active
}

// ActiveDrifted reports whether applying p would change any of the
// fields that make the AP "effectively a different network" (spec §4.2,
// §8 S6), without mutating anything. The state machine calls this before
// UpdateFromProbe so it can drive back to Initialised first.
func (r *Registry) ActiveDrifted(p Probe) bool {
	if r.active == nil || r.active.BSSID != p.BSSID {
		return false
	}
	return r.active.differsFrom(p)
}

// UpdateFromProbe inserts a new entry for an unseen BSSID, or updates an
// existing one in place (spec §4.2 update_from_probe, §8 R3: a second
// call with the same Probe is equivalent to one). Rates/ElementsBlob are
// reallocated rather than mutated in place, so any previously captured
// slice stays valid (spec §9).
func (r *Registry) UpdateFromProbe(p Probe) *Entry {
	if p.Observed.IsZero() {
		p.Observed = time.Now()
	}
	e, exists := r.entries[p.BSSID]
	if !exists {
		e = newEntry(p)
		r.entries[p.BSSID] = e
		return e
	}
	e.applyProbe(p)
	return e
}

// Trim releases the list's reference on every entry older than expiry,
// except the active entry (spec §4.2 trim). An entry whose reference
// count reaches zero has its keys wiped immediately.
func (r *Registry) Trim(now time.Time, expiry time.Duration) {
	for bssid, e := range r.entries {
		if e == r.active {
			continue
		}
		if now.Sub(e.LastUpdated) <= expiry {
			continue
		}
		delete(r.entries, bssid)
		if e.Release() {
			e.WipeKeys()
		}
	}
}

// Remove drops bssid from the list unconditionally (used by leave/BSS
// replacement paths that already know the entry should go), releasing
// the list's reference.
func (r *Registry) Remove(bssid [6]byte) {
	e, ok := r.entries[bssid]
	if !ok {
		return
	}
	delete(r.entries, bssid)
	if e == r.active {
		r.active = nil
	}
	if e.Release() {
		e.WipeKeys()
	}
}

// Insert places a freshly built entry (such as one from CopyForReconnect)
// directly into the list, replacing whatever was previously cached under
// the same BSSID without going through update_from_probe's merge
// semantics (spec §4.2, §8 P6 reconnection path).
func (r *Registry) Insert(e *Entry) {
	r.entries[e.BSSID] = e
}

// Len reports the number of entries currently cached.
func (r *Registry) Len() int { return len(r.entries) }

// BSSIDs returns every cached BSSID, in no particular order (spec §4.2
// notes the list is itself unordered).
func (r *Registry) BSSIDs() [][6]byte {
	out := make([][6]byte, 0, len(r.entries))
	for bssid := range r.entries {
		out = append(out, bssid)
	}
	return out
}

// Select runs scan-completion selection (spec §4.3): a directed scan
// (bssid non-nil) returns the matching BSSID if its SSID also matches and
// its rate set is feasible against localRates; a broadcast scan returns
// the highest-RSSI entry matching ssid with a feasible rate set. It
// returns nil if nothing qualifies.
func (r *Registry) Select(ssid string, bssid *[6]byte, localRates []elements.Rate) *Entry {
	if bssid != nil {
		e, ok := r.entries[*bssid]
		if !ok || e.SSID != ssid {
			return nil
		}
		if _, ok := RateIntersection(e.Rates, localRates); !ok {
			return nil
		}
		return e
	}

	var best *Entry
	for _, e := range r.entries {
		if e.SSID != ssid {
			continue
		}
		if _, ok := RateIntersection(e.Rates, localRates); !ok {
			continue
		}
		if best == nil || e.RSSI > best.RSSI {
			best = e
		}
	}
	return best
}

// RateIntersection implements spec §4.4's rate validation: if an AP rate
// has the basic bit set and is not present (ignoring the basic bit and
// the HT-PHY membership-selector sentinel) in localRates, the whole set
// is infeasible (spec §8 B1). Otherwise the maximum rate present in both
// lists is returned.
func RateIntersection(apRates, localRates []elements.Rate) (max elements.Rate, ok bool) {
	localValues := make(map[uint8]bool, len(localRates))
	for _, r := range localRates {
		if r.IsHTSelector() {
			continue
		}
		localValues[r.Value500kbps()] = true
	}

	var bestValue uint8
	found := false
	for _, r := range apRates {
		if r.IsHTSelector() {
			continue
		}
		v := r.Value500kbps()
		if r.IsBasic() && !localValues[v] {
			return 0, false
		}
		if localValues[v] && v >= bestValue {
			bestValue = v
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return elements.Rate(bestValue), true
}
