// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package station

import (
	"context"
	"time"

	"go.fuchsia.dev/wlanstation/internal/bss"
	"go.fuchsia.dev/wlanstation/internal/elements"
	"go.fuchsia.dev/wlanstation/internal/frame"
	"go.fuchsia.dev/wlanstation/internal/stationerr"
)

// ScanRequest describes one scan (spec §4.3 C3): a directed scan names
// BSSID, a broadcast scan leaves it nil; Channels lists the channels to
// sweep, one dwell each.
type ScanRequest struct {
	SSID      string
	BSSID     *[6]byte
	Channels  []uint8
	Foreground bool // foreground pauses the data path; Scan itself never resumes it.
}

// Scan runs request to completion and returns the entry selected for
// joining, or nil if none qualified (spec §4.3 "scan completion ->
// select"). It drives Initialised -> Probing -> Initialised (or ->
// Authenticating if a join follows immediately), honoring the
// scan-serialization lock (scanMu) so only one sweep runs at a time
// (spec §5 lock order "scan -> link").
func (l *Link) Scan(ctx context.Context, req ScanRequest) (*bss.Entry, error) {
	l.scanMu.Lock()
	defer l.scanMu.Unlock()

	l.mu.Lock()
	if err := l.beginProbingLocked(ctx); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if req.Foreground {
		l.pauseLocked(ctx)
	}
	localRates := l.props.SupportedRates
	l.mu.Unlock()

	for _, ch := range req.Channels {
		if err := l.drv.SetChannel(ctx, ch); err != nil {
			l.log.WithError(err).WithField("channel", ch).Warn("scan: set channel failed")
			continue
		}
		l.emitProbeRequest(ctx, req.SSID, req.BSSID)
		select {
		case <-time.After(l.dwell()):
		case <-ctx.Done():
			l.mu.Lock()
			_ = l.endProbingLocked(ctx, nil)
			l.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	selected := l.registry.Select(req.SSID, req.BSSID, localRates)
	if selected == nil {
		if err := l.endProbingLocked(ctx, nil); err != nil {
			return nil, err
		}
		return nil, stationerr.New(stationerr.Unsuccessful, "scan: no matching bss")
	}
	if err := l.endProbingLocked(ctx, selected); err != nil {
		return nil, err
	}
	return selected, nil
}

func (l *Link) dwell() time.Duration {
	if l.cfg.ScanDwell > 0 {
		return l.cfg.ScanDwell
	}
	return 30 * time.Millisecond
}

// tuDuration converts an 802.11 time unit count (1 TU = 1024
// microseconds, IEEE Std 802.11-2016 §3.2) into a time.Duration.
func tuDuration(tus uint16) time.Duration {
	return time.Duration(tus) * 1024 * time.Microsecond
}

// BackgroundScan runs a neighbour-observation sweep while the link is
// already connected (spec §4.3 "a background sweep that runs while a BSS
// is already active"): unlike Scan's foreground sweep it never pauses the
// data path, dwells beacon_interval-pad per channel so it returns before
// the next beacon is due, sleeps an inter-channel delay between hops, and
// exits back to the state it started in rather than attempting a join —
// "preserves data connectivity while gathering neighbour observations".
func (l *Link) BackgroundScan(ctx context.Context, req ScanRequest) error {
	l.scanMu.Lock()
	defer l.scanMu.Unlock()

	l.mu.Lock()
	prior := l.state
	if prior != Associated && prior != Encrypted {
		l.mu.Unlock()
		return stationerr.New(stationerr.Unsuccessful, "background-scan: no active bss")
	}
	active := l.registry.Active()
	if active == nil {
		l.mu.Unlock()
		return stationerr.New(stationerr.InvalidAddress, "background-scan")
	}
	dwell := tuDuration(active.BeaconInterval) - l.cfg.BackgroundScanPad
	if dwell <= 0 {
		dwell = l.dwell()
	}
	if err := l.beginBackgroundProbingLocked(ctx); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	for i, ch := range req.Channels {
		if err := l.drv.SetChannel(ctx, ch); err != nil {
			l.log.WithError(err).WithField("channel", ch).Warn("background scan: set channel failed")
			continue
		}
		l.emitProbeRequest(ctx, req.SSID, req.BSSID)
		select {
		case <-time.After(dwell):
		case <-ctx.Done():
			l.mu.Lock()
			l.endBackgroundProbingLocked(ctx, prior)
			l.mu.Unlock()
			return ctx.Err()
		}
		if i == len(req.Channels)-1 {
			continue
		}
		select {
		case <-time.After(l.cfg.BackgroundScanInterChannelDelay):
		case <-ctx.Done():
			l.mu.Lock()
			l.endBackgroundProbingLocked(ctx, prior)
			l.mu.Unlock()
			return ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.endBackgroundProbingLocked(ctx, prior)
	return nil
}

// beginBackgroundProbingLocked transiently enters Probing without the
// Initialised precondition beginProbingLocked enforces for a foreground
// scan, and without running Probing's (no-op) entry action through
// transitionLocked — a background sweep must take effect immediately,
// never latch. Must be called with l.mu held.
func (l *Link) beginBackgroundProbingLocked(ctx context.Context) error {
	if err := l.drv.SetState(ctx, driverStateFor(Probing)); err != nil {
		return err
	}
	l.setState(Probing)
	return nil
}

// endBackgroundProbingLocked restores the state and driver state the
// sweep started from, without re-running that state's entry action: the
// link never left Associated/Encrypted in substance, so re-entering would
// wrongly restart the handshake or re-resume an already-running data
// path. Must be called with l.mu held.
func (l *Link) endBackgroundProbingLocked(ctx context.Context, prior State) {
	l.cancelTimerLocked()
	if err := l.drv.SetState(ctx, driverStateFor(prior)); err != nil {
		l.log.WithError(err).Warn("background scan: failed to restore driver state")
	}
	l.setState(prior)
}

// emitProbeRequest sends one probe request: directed if bssid is
// non-nil, broadcast otherwise (spec §4.3).
func (l *Link) emitProbeRequest(ctx context.Context, ssid string, bssid *[6]byte) {
	l.mu.Lock()
	localRates := append([]elements.Rate(nil), l.props.SupportedRates...)
	seq := l.nextSeq()
	l.mu.Unlock()

	dest := [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if bssid != nil {
		dest = *bssid
	}
	body := make([]byte, 0, 40)
	body = append(body, elements.EncodeSSID(ssid)...)
	body = append(body, elements.EncodeRates(elements.IdSupportedRates, localRates)...)

	raw := frame.EncodeManagement(frame.SubtypeProbeReq, l.props.LocalAddr, dest, dest, seq, body)
	if _, err := l.drv.Send(ctx, [][]byte{raw}); err != nil {
		l.log.WithError(err).Debug("scan: probe request send failed")
	}
}
