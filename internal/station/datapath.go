// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package station

import (
	"context"

	"go.fuchsia.dev/wlanstation/internal/bss"
	"go.fuchsia.dev/wlanstation/internal/ccmp"
	"go.fuchsia.dev/wlanstation/internal/driver"
	"go.fuchsia.dev/wlanstation/internal/eapol"
	"go.fuchsia.dev/wlanstation/internal/elements"
	"go.fuchsia.dev/wlanstation/internal/fourway"
	"go.fuchsia.dev/wlanstation/internal/frame"
	"go.fuchsia.dev/wlanstation/internal/stationerr"
)

// etherTypeEAPOL is the EtherType IEEE 802.1X uses for EAPOL frames.
const etherTypeEAPOL uint16 = 0x888e

// pauseLocked stops draining the transmit queue (spec §4.5 "pause(ctx)").
// Already-queued packets accumulate in pauseQueue rather than being
// dropped.
func (l *Link) pauseLocked(ctx context.Context) {
	l.paused = true
}

// resumeLocked drains the pause queue in FIFO order, encrypting each
// queued packet if the active entry now has an installed pairwise key
// (spec §4.5 "resume(ctx)", §8 S3: packets queued mid-handshake are sent
// once the handshake completes rather than being dropped).
func (l *Link) resumeLocked(ctx context.Context) {
	l.paused = false
	queue := l.pauseQueue
	l.pauseQueue = nil
	for _, qp := range queue {
		l.transmitLocked(ctx, qp)
	}
}

// TransmitData is the public entry point the network stack calls to send
// one payload (spec §4.5, §6 "Networking interface"). If the link is
// paused, the packet is queued rather than sent or dropped.
func (l *Link) TransmitData(ctx context.Context, dst *[6]byte, protocol uint16, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	qp := queuedPacket{src: l.props.LocalAddr, dst: dst, protocol: protocol, payload: payload}
	if l.paused {
		l.pauseQueue = append(l.pauseQueue, qp)
		return nil
	}
	return l.transmitLocked(ctx, qp)
}

// transmitLocked encapsulates and, if a pairwise key is installed,
// encrypts one packet, then hands it to the driver. A StatusResourceInUse
// result is swallowed and reported as success after the batch is freed,
// matching spec §7's "resource in use" handling: the caller only cares
// that the packet was accepted for eventual transmission.
func (l *Link) transmitLocked(ctx context.Context, qp queuedPacket) error {
	active := l.registry.Active()
	if active == nil {
		return stationerr.New(stationerr.InvalidAddress, "transmit")
	}

	var raw []byte
	if key := active.Keys[0]; key != nil && !qp.unencrypted {
		seq := l.nextSeq()
		unprotected := frame.EncodeData(qp.src, qp.dst, active.BSSID, qp.protocol, qp.payload, false, seq)
		plaintext := unprotected[24:] // LLC/SNAP + EtherType + payload.
		protectedHeader := frame.EncodeDataHeader(qp.src, qp.dst, active.BSSID, true, seq)
		aad := frame.CCMPAdditionalData(protectedHeader)
		pn := key.NextTxPN()
		sealed := ccmp.Encrypt(key.Material, 0, qp.src, pn, aad, plaintext)
		raw = append(protectedHeader, sealed...)
	} else {
		raw = frame.EncodeData(qp.src, qp.dst, active.BSSID, qp.protocol, qp.payload, false, l.nextSeq())
	}

	// A driver.StatusResourceInUse result is swallowed here too: either
	// way the packet was accepted, so the caller sees success.
	_, err := l.drv.Send(ctx, [][]byte{raw})
	return err
}

// ProcessReceivedPacket implements driver.ReceivePath: it parses the
// frame, dispatches management frames to the state machine, decrypts and
// decapsulates data frames, and hands EAPOL-Key frames to the active
// entry's handshake authenticator (spec §6 "process_received_packet").
func (l *Link) ProcessReceivedPacket(packet []byte, rssi int8) {
	ctx := context.Background()
	hdr, body, err := frame.ParseFrame(packet)
	if err != nil {
		l.log.WithError(err).Debug("dropped frame: parse error")
		return
	}

	switch hdr.FC.Type() {
	case frame.TypeManagement:
		l.processManagement(ctx, hdr, body, rssi)
	case frame.TypeData:
		l.processData(ctx, hdr, body)
	}
}

// receivePathAdapter satisfies driver.ReceivePath's no-argument RemoveLink
// callback, which the driver invokes asynchronously (e.g. on device
// removal) and so carries neither a context nor an error return — unlike
// the richer Link.RemoveLink callers use for an explicit, awaited
// teardown.
type receivePathAdapter struct{ l *Link }

// ReceivePathAdapter returns the driver.ReceivePath this link registers
// with its driver at construction (spec §6 "the driver calls back into
// the station").
func (l *Link) ReceivePathAdapter() driver.ReceivePath {
	return &receivePathAdapter{l: l}
}

func (a *receivePathAdapter) ProcessReceivedPacket(packet []byte, rssi int8) {
	a.l.ProcessReceivedPacket(packet, rssi)
}

func (a *receivePathAdapter) RemoveLink() {
	_ = a.l.RemoveLink(context.Background())
}

func (l *Link) processManagement(ctx context.Context, hdr frame.Header, body []byte, rssi int8) {
	switch hdr.FC.Subtype() {
	case frame.SubtypeAuth:
		l.OnAuthResponse(ctx, hdr.Addr2, parseAuthStatus(body))
	case frame.SubtypeAssocResp, frame.SubtypeReassocResp:
		ok, aid := parseAssocStatus(body)
		l.OnAssocResponse(ctx, hdr.Addr2, ok, aid)
	case frame.SubtypeDisassoc:
		l.OnDisassoc(ctx, hdr.Addr2)
	case frame.SubtypeDeauth:
		l.OnDeauth(ctx, hdr.Addr2)
	case frame.SubtypeBeacon, frame.SubtypeProbeResp:
		if len(body) >= 12 {
			if _, err := frame.IterIEs(body[12:]); err != nil {
				l.log.WithError(err).Debug("dropped probe/beacon: malformed information elements")
				return
			}
		}
		p := parseProbeOrBeacon(hdr, body, rssi)
		l.HandleProbeOrBeacon(ctx, p)
	}
}

func parseAuthStatus(body []byte) bool {
	if len(body) < 6 {
		return false
	}
	status := uint16(body[4]) | uint16(body[5])<<8
	return status == 0
}

func parseAssocStatus(body []byte) (ok bool, aid uint16) {
	if len(body) < 6 {
		return false, 0
	}
	status := uint16(body[2]) | uint16(body[3])<<8
	aid = (uint16(body[4]) | uint16(body[5])<<8)
	return status == 0, aid
}

func parseProbeOrBeacon(hdr frame.Header, body []byte, rssi int8) bss.Probe {
	p := bss.Probe{BSSID: hdr.Addr3, RSSI: rssi}
	if len(body) < 12 {
		return p
	}
	p.BeaconInterval = uint16(body[8]) | uint16(body[9])<<8
	p.Capabilities = uint16(body[10]) | uint16(body[11])<<8
	p.ElementsBlob = append([]byte(nil), body[12:]...)

	raws, _ := frame.IterIEs(body[12:])
	for _, raw := range raws {
		switch raw.ID {
		case elements.IdSSID:
			p.SSID = string(raw.Payload)
		case elements.IdSupportedRates, elements.IdExtendedRates:
			p.Rates = append(p.Rates, elements.DecodeRates(raw.Payload)...)
		case elements.IdDSSSParamSet:
			if len(raw.Payload) > 0 {
				p.Channel = raw.Payload[0]
			}
		case elements.IdRSN:
			full := append([]byte{raw.ID, uint8(len(raw.Payload))}, raw.Payload...)
			if rsn, err := elements.ParseRSN(full); err == nil {
				p.RSN = rsn
			}
		}
	}
	return p
}

// processData decrypts and decapsulates a received data frame. It takes a
// reference on the active entry via GetActive (spec §4.2 get_active)
// rather than reading Registry.Active's bare pointer, because the
// EtherType dispatch below runs with the link lock released — an
// external callback into the network stack can take arbitrarily long,
// and the reference keeps the entry (and its keys) alive even if a
// concurrent RemoveLink/reconnect drops the registry's own reference
// while Dispatch is running.
func (l *Link) processData(ctx context.Context, hdr frame.Header, body []byte) {
	l.mu.Lock()

	active := l.registry.GetActive()
	if active == nil {
		l.mu.Unlock()
		return
	}
	release := func() {
		if active.Release() {
			active.WipeKeys()
		}
	}

	payload := body
	if hdr.FC.Has(frame.FCProtected) {
		key := active.Keys[0]
		if key == nil {
			l.log.Debug("dropped protected frame: no pairwise key installed")
			l.mu.Unlock()
			release()
			return
		}
		if len(body) < ccmp.HeaderLen {
			l.mu.Unlock()
			release()
			return
		}
		aad := frame.CCMPAdditionalData(hdr.Bytes())
		pn, plain, err := ccmp.Decrypt(key.Material, hdr.Addr2, aad, body)
		if err != nil {
			l.log.WithError(err).Debug("dropped frame: CCMP decrypt failed")
			l.mu.Unlock()
			release()
			return
		}
		if !key.CheckAndAdvanceReplay(pn) {
			l.log.Debug("dropped frame: replay counter did not advance")
			l.mu.Unlock()
			release()
			return
		}
		payload = plain
	}

	protocol, decapsulated, err := frame.ParseLLCSNAP(payload)
	if err != nil {
		l.log.WithError(err).Debug("dropped frame: bad LLC/SNAP header")
		l.mu.Unlock()
		release()
		return
	}

	if protocol == etherTypeEAPOL {
		l.handleEAPOLLocked(ctx, active, decapsulated)
		l.mu.Unlock()
		release()
		return
	}

	l.mu.Unlock()
	l.stack.Dispatch(protocol, decapsulated)
	release()
}

func (l *Link) handleEAPOLLocked(ctx context.Context, active *bss.Entry, data []byte) {
	if active.Authenticator == nil {
		return
	}
	kf, err := eapol.ParseKeyFrame(data, 16)
	if err != nil {
		l.log.WithError(err).Debug("dropped EAPOL frame: parse error")
		return
	}
	if err := active.Authenticator.HandleEAPOLKeyFrame(kf); err != nil {
		l.log.WithError(err).Debug("handshake rejected EAPOL-Key frame")
		return
	}
	if active.Authenticator.Complete() {
		l.completeHandshakeLocked(ctx)
	}
}

// linkTransport is the glue fourway.FourWay sends its frames and derived
// keys through: it wraps outgoing EAPOL-Key frames in a data frame and
// installs derived keys into the target entry's key slots (spec §8 S2).
// Every method here is called synchronously from within
// handleEAPOLLocked, so the link lock is already held — neither method
// may take it again.
type linkTransport struct {
	l *Link
	e *bss.Entry
}

func (t *linkTransport) SendEAPOLRequest(src, dst [6]uint8, f *eapol.KeyFrame) error {
	raw := frame.EncodeData(src, &dst, t.e.BSSID, etherTypeEAPOL, f.Bytes(), false, t.l.nextSeq())
	_, err := t.l.drv.Send(context.Background(), [][]byte{raw})
	return err
}

func (t *linkTransport) SendKeys(keys []fourway.KeyInstall) error {
	for _, k := range keys {
		material := append([]byte(nil), k.Material...)
		key := bss.NewKey(keyFlags(k.Pairwise), 0, material)
		if k.Slot < 0 || k.Slot > 1 {
			continue
		}
		t.e.Keys[k.Slot] = key
	}
	return nil
}

func keyFlags(pairwise bool) bss.KeyFlags {
	if pairwise {
		return bss.KeyFlagPairwise
	}
	return bss.KeyFlagGroup
}
