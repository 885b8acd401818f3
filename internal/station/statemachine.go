// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package station

import (
	"context"
	"encoding/binary"
	"time"

	"go.fuchsia.dev/wlanstation/internal/bss"
	"go.fuchsia.dev/wlanstation/internal/driver"
	"go.fuchsia.dev/wlanstation/internal/elements"
	"go.fuchsia.dev/wlanstation/internal/frame"
	"go.fuchsia.dev/wlanstation/internal/fourway"
	"go.fuchsia.dev/wlanstation/internal/stationerr"
)

// driverStateFor maps a station.State onto the driver-facing state
// enum (spec §6 set_state).
func driverStateFor(s State) driver.State {
	switch s {
	case Initialised:
		return driver.StateInitialised
	case Probing:
		return driver.StateProbing
	case Authenticating:
		return driver.StateAuthenticating
	case Associating:
		return driver.StateAssociating
	case Reassociating:
		return driver.StateReassociating
	case Associated:
		return driver.StateAssociated
	case Encrypted:
		return driver.StateEncrypted
	default:
		return driver.StateUninitialised
	}
}

// setState assigns l.state. It does not call the driver itself: every
// caller first calls the driver's SetState and only calls setState once
// that has returned successfully (spec §5 ordering guarantee). Must be
// called with l.mu held.
func (l *Link) setState(s State) {
	l.state = s
}

// transitionLocked drives the state machine to target, honoring the
// Probing latch (spec §4.3: "no other state transitions are allowed
// while Probing; the request is latched ... and replayed when Probing
// exits"). Must be called with l.mu held.
func (l *Link) transitionLocked(ctx context.Context, target State) error {
	if l.state == Probing && target != Probing {
		l.probeNextState = &target
		return nil
	}
	if err := l.drv.SetState(ctx, driverStateFor(target)); err != nil {
		return err
	}
	l.setState(target)
	l.logLinkUpTransitionLocked(target)
	return l.runEntryActionLocked(ctx, target)
}

// logLinkUpTransitionLocked logs the link-up/link-down edges the network
// layer cares about: Associated only counts as up once no cipher
// handshake is pending, Encrypted always does (State.isTerminalUp, spec
// §4.4). Must be called with l.mu held, after l.state has been updated.
func (l *Link) logLinkUpTransitionLocked(target State) {
	cipherPending := target == Associated && l.wantsPSK(l.registry.Active())
	wasUp := l.linkUp
	isUp := target.isTerminalUp(cipherPending)
	l.linkUp = isUp
	if isUp && !wasUp {
		l.log.WithField("state", target.String()).Info("link up")
	} else if wasUp && !isUp {
		l.log.WithField("state", target.String()).Info("link down")
	}
}

func (l *Link) runEntryActionLocked(ctx context.Context, target State) error {
	switch target {
	case Authenticating:
		return l.enterAuthenticatingLocked(ctx)
	case Associating, Reassociating:
		return l.enterAssociatingLocked(ctx)
	case Associated:
		return l.enterAssociatedLocked(ctx)
	case Encrypted:
		return l.enterEncryptedLocked(ctx)
	case Initialised:
		l.enterInitialisedLocked(ctx)
		return nil
	}
	return nil
}

func (l *Link) cancelTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerQueued = false
}

func (l *Link) armTimerLocked(d time.Duration) {
	l.cancelTimerLocked()
	l.timerQueued = true
	l.timer = time.AfterFunc(d, l.onTimerFire)
}

// onTimerFire is the deferred worker: it re-checks timerQueued under the
// lock and aborts if the flag was already cleared by a reply winning the
// race (spec §4.4 ties (a)).
func (l *Link) onTimerFire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.timerQueued {
		return
	}
	l.timerQueued = false
	l.log.WithField("state", l.state.String()).Debug("state timer fired")
	l.failLocked(context.Background(), stationerr.Timeout)
}

// failLocked drops the link back to Initialised, releasing the active
// BSS (spec §4.4 "timeout / bad response -> Initialised", §7 "state
// machine errors ... drop the link back to Initialised").
func (l *Link) failLocked(ctx context.Context, kind stationerr.Kind) {
	l.log.WithField("kind", kind.String()).Warn("state transition failed")
	_ = l.transitionLocked(ctx, Initialised)
}

// enterAuthenticatingLocked emits an open-system authentication request
// and arms the auth timer (spec §4.4).
func (l *Link) enterAuthenticatingLocked(ctx context.Context) error {
	l.pauseLocked(ctx)

	active := l.registry.Active()
	if active == nil {
		return stationerr.New(stationerr.InvalidAddress, "enter-authenticating")
	}

	body := make([]byte, 6)
	binary.LittleEndian.PutUint16(body[0:2], 0) // algorithm: open system.
	binary.LittleEndian.PutUint16(body[2:4], 1) // transaction sequence 1.
	binary.LittleEndian.PutUint16(body[4:6], 0) // status: success.

	raw := frame.EncodeManagement(frame.SubtypeAuth, l.props.LocalAddr, active.BSSID, active.BSSID, l.nextSeq(), body)
	if _, err := l.drv.Send(ctx, [][]byte{raw}); err != nil {
		return stationerr.Wrap(stationerr.OutOfResources, "send-auth", err)
	}

	l.armTimerLocked(l.cfg.AuthTimeout)
	return nil
}

// enterAssociatingLocked emits an association request carrying
// capabilities, SSID, rate set, and — for a WPA2-PSK target — the
// station's RSN IE (spec §4.4).
func (l *Link) enterAssociatingLocked(ctx context.Context) error {
	active := l.registry.Active()
	if active == nil {
		return stationerr.New(stationerr.InvalidAddress, "enter-associating")
	}

	body := make([]byte, 0, 64)
	var capField [2]byte
	binary.LittleEndian.PutUint16(capField[:], l.props.Capabilities)
	body = append(body, capField[:]...)
	var listenInterval [2]byte
	binary.LittleEndian.PutUint16(listenInterval[:], 1)
	body = append(body, listenInterval[:]...)
	body = append(body, elements.EncodeSSID(l.cfg.SSID)...)
	body = append(body, elements.EncodeRates(elements.IdSupportedRates, l.props.SupportedRates)...)
	if l.wantsPSK(active) {
		body = append(body, elements.DefaultStationRSN().Bytes()...)
	}

	raw := frame.EncodeManagement(frame.SubtypeAssocReq, l.props.LocalAddr, active.BSSID, active.BSSID, l.nextSeq(), body)
	if _, err := l.drv.Send(ctx, [][]byte{raw}); err != nil {
		return stationerr.Wrap(stationerr.OutOfResources, "send-assoc", err)
	}

	l.armTimerLocked(l.cfg.AssocTimeout)
	return nil
}

func (l *Link) wantsPSK(e *bss.Entry) bool {
	return e != nil && e.RSN != nil && e.RSN.HasCCMP() && e.RSN.HasPSK() && l.cfg.Passphrase != ""
}

// enterAssociatedLocked initialises the handshake authenticator for a
// WPA2-PSK target and arms the handshake timer, or brings the link up
// immediately for an open network (spec §4.4).
func (l *Link) enterAssociatedLocked(ctx context.Context) error {
	l.cancelTimerLocked()
	active := l.registry.Active()
	if active == nil {
		return stationerr.New(stationerr.InvalidAddress, "enter-associated")
	}
	if !l.wantsPSK(active) {
		l.resumeLocked(ctx)
		return nil
	}

	active.Passphrase = l.cfg.Passphrase
	fw := fourway.NewFourWay(fourway.Config{
		AssocRSNE:  elements.DefaultStationRSN(),
		BeaconRSNE: active.RSN,
		PeerAddr:   active.BSSID,
		StaAddr:    l.props.LocalAddr,
		Transport:  &linkTransport{l: l, e: active},
		SSID:       l.cfg.SSID,
		PassPhrase: l.cfg.Passphrase,
	})
	active.Authenticator = fw
	l.armTimerLocked(l.cfg.HandshakeTimeout)
	return nil
}

// enterEncryptedLocked tears down the authenticator session and brings
// the link up (spec §4.4).
func (l *Link) enterEncryptedLocked(ctx context.Context) error {
	l.cancelTimerLocked()
	if active := l.registry.Active(); active != nil {
		active.Authenticator = nil
	}
	l.resumeLocked(ctx)
	return nil
}

// enterInitialisedLocked sends a disassociation or deauthentication
// frame as applicable, zero-wipes keys, and brings the link down (spec
// §4.4).
func (l *Link) enterInitialisedLocked(ctx context.Context) {
	l.cancelTimerLocked()
	active := l.registry.Active()
	if active != nil {
		l.sendLeaveFrameLocked(ctx, active)
		active.WipeKeys()
		l.registry.Remove(active.BSSID)
		l.registry.ClearActive()
	}
	l.paused = true
}

func (l *Link) sendLeaveFrameLocked(ctx context.Context, active *bss.Entry) {
	var subtype uint8
	var reason uint16
	switch {
	case l.state == Associating || l.state == Reassociating:
		subtype, reason = frame.SubtypeDeauth, 1
	default:
		subtype, reason = frame.SubtypeDisassoc, 1
	}
	body := make([]byte, 2)
	binary.LittleEndian.PutUint16(body, reason)
	raw := frame.EncodeManagement(subtype, l.props.LocalAddr, active.BSSID, active.BSSID, l.nextSeq(), body)
	_, _ = l.drv.Send(ctx, [][]byte{raw})
}

// nextSeq advances the link's sequence counter and returns the 12-bit
// value to place on the wire (spec §4.4 numeric semantics, §8 P2). The
// increment is a plain one, serialised by l.mu, which every caller holds.
func (l *Link) nextSeq() uint16 {
	l.seq++
	return uint16(l.seq & 0x0fff)
}

// --- Public transition entry points ---

// beginProbingLocked drives Initialised -> Probing for a foreground scan (spec
// §4.3). The actual channel sweep runs in scan.go.
func (l *Link) beginProbingLocked(ctx context.Context) error {
	if l.state != Initialised {
		return stationerr.New(stationerr.Unsuccessful, "start-scan")
	}
	return l.transitionLocked(ctx, Probing)
}

// Join drives Initialised -> Authenticating directly against bssid,
// without a preceding scan sweep (spec §6 control surface: "start /
// scan / join / leave against a Station"). It reuses whatever the
// registry already knows about bssid from an earlier Scan or
// BackgroundScan observation; if bssid has never been observed, it
// seeds a minimal entry from the caller's own configured SSID and
// rates so the handshake still has something to authenticate against.
func (l *Link) Join(ctx context.Context, bssid [6]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Initialised {
		return stationerr.New(stationerr.Unsuccessful, "join")
	}

	target := l.registry.Lookup(bssid)
	if target == nil {
		target = l.registry.UpdateFromProbe(bss.Probe{
			BSSID: bssid,
			SSID:  l.cfg.SSID,
			Rates: l.props.SupportedRates,
		})
	}
	l.registry.SetActive(target)
	return l.transitionLocked(ctx, Authenticating)
}

// endProbingLocked exits Probing back to Initialised, then either joins
// joinTarget or replays any transition request latched while the sweep
// was in progress (spec §4.3). The drop to Initialised always happens
// first, and is not itself reported through runEntryActionLocked's
// Initialised case (which would re-send a leave frame for no reason):
// Probing never has an active BSS to leave.
func (l *Link) endProbingLocked(ctx context.Context, joinTarget *bss.Entry) error {
	if err := l.drv.SetState(ctx, driverStateFor(Initialised)); err != nil {
		return err
	}
	l.setState(Initialised)
	l.cancelTimerLocked()

	if joinTarget != nil {
		l.probeNextState = nil
		l.registry.SetActive(joinTarget)
		return l.transitionLocked(ctx, Authenticating)
	}

	next := l.probeNextState
	l.probeNextState = nil
	if next != nil {
		return l.transitionLocked(ctx, *next)
	}
	return nil
}

// OnAuthResponse handles a received authentication response (spec §4.4
// Authenticating -> Associating on success).
func (l *Link) OnAuthResponse(ctx context.Context, bssid [6]byte, statusOK bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Authenticating {
		return
	}
	active := l.registry.Active()
	if active == nil || active.BSSID != bssid {
		l.failLocked(ctx, stationerr.InvalidAddress)
		return
	}
	if !l.timerQueued {
		return // timer already fired and moved the state elsewhere.
	}
	l.timerQueued = false
	if !statusOK {
		l.failLocked(ctx, stationerr.Unsuccessful)
		return
	}
	if err := l.transitionLocked(ctx, Associating); err != nil {
		l.failLocked(ctx, stationerr.OutOfResources)
	}
}

// OnAssocResponse handles a received association response (spec §4.4
// Associating -> Associated on success).
func (l *Link) OnAssocResponse(ctx context.Context, bssid [6]byte, statusOK bool, aid uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Associating && l.state != Reassociating {
		return
	}
	active := l.registry.Active()
	if active == nil || active.BSSID != bssid {
		l.failLocked(ctx, stationerr.InvalidAddress)
		return
	}
	if !l.timerQueued {
		return
	}
	l.timerQueued = false
	if !statusOK {
		l.failLocked(ctx, stationerr.Unsuccessful)
		return
	}
	active.AID = aid & 0x3fff
	if err := l.transitionLocked(ctx, Associated); err != nil {
		l.failLocked(ctx, stationerr.OutOfResources)
	}
}

// completeHandshakeLocked drives Associated -> Encrypted once the
// four-way handshake reports complete: the pairwise key is installed, and
// the group key too when message 3 carried one (spec §4.4 "EAPOL handshake
// complete -> Encrypted"). Must be called with l.mu held; the data path
// calls this right after handing a received EAPOL-Key frame to the
// active entry's Authenticator.
func (l *Link) completeHandshakeLocked(ctx context.Context) {
	if l.state != Associated {
		return
	}
	_ = l.transitionLocked(ctx, Encrypted)
}

// OnDisassoc handles a received disassociation frame (spec §4.4
// "Associated/Encrypted -> disassoc received -> Associating (re-attempt)").
func (l *Link) OnDisassoc(ctx context.Context, bssid [6]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Associated && l.state != Encrypted {
		return
	}
	active := l.registry.Active()
	if active == nil || active.BSSID != bssid {
		return
	}
	l.reconnectLocked(ctx, Associating)
}

// OnDeauth handles a received deauthentication frame (spec §4.4, §8 S4).
func (l *Link) OnDeauth(ctx context.Context, bssid [6]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Associated && l.state != Encrypted {
		return
	}
	active := l.registry.Active()
	if active == nil || active.BSSID != bssid {
		return
	}
	l.reconnectLocked(ctx, Authenticating)
}

// reconnectLocked implements the copy_for_reconnect entry action: the
// original entry loses the list's reference (spec §9's WeakBss note
// eliminates the separate join-reference the original two-refs-released
// pattern required, so here exactly one reference — the list's — is
// released rather than two; see DESIGN.md), a fresh copy is inserted in
// its place, and the requested state's entry action runs against it.
func (l *Link) reconnectLocked(ctx context.Context, target State) {
	original := l.registry.Active()
	if original == nil {
		return
	}
	fresh := bss.CopyForReconnect(original)
	l.registry.ClearActive()
	l.registry.Remove(original.BSSID)
	original.WipeKeys()
	l.registry.Insert(fresh)
	l.registry.SetActive(fresh)
	if err := l.transitionLocked(ctx, target); err != nil {
		l.failLocked(ctx, stationerr.OutOfResources)
	}
}

// Leave drives an explicit leave back to Initialised (spec §4.4 "explicit
// leave -> Initialised", §8 P4).
func (l *Link) Leave(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Uninitialised || l.state == Initialised {
		return
	}
	_ = l.transitionLocked(ctx, Initialised)
}

// HandleProbeOrBeacon feeds a parsed probe response or beacon into the
// registry, driving the state machine to Initialised first if it mutates
// the active BSS's defining parameters (spec §4.2, §8 S6).
func (l *Link) HandleProbeOrBeacon(ctx context.Context, p bss.Probe) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.registry.ActiveDrifted(p) {
		l.log.WithField("bssid", p.BSSID).Info("active BSS parameters drifted; resetting to Initialised")
		_ = l.transitionLocked(ctx, Initialised)
	}
	l.registry.UpdateFromProbe(p)
}
