// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package station

import (
	"context"
	"testing"
	"time"

	"go.fuchsia.dev/wlanstation/internal/bss"
	"go.fuchsia.dev/wlanstation/internal/ccmp"
	"go.fuchsia.dev/wlanstation/internal/frame"
)

const testProtocol uint16 = 0x0800

func encodeLLCSNAP(protocol uint16, payload []byte) []byte {
	body := make([]byte, 8+len(payload))
	body[0], body[1], body[2] = 0xaa, 0xaa, 0x03
	body[6] = byte(protocol >> 8)
	body[7] = byte(protocol)
	copy(body[8:], payload)
	return body
}

func installActiveWithKey(t *testing.T, l *Link, bssid [6]byte, material []byte) *bss.Key {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.registry.UpdateFromProbe(bss.Probe{BSSID: bssid, SSID: "homenet", Rates: testRates, RSSI: -40, Observed: time.Now()})
	l.registry.SetActive(e)
	key := bss.NewKey(bss.KeyFlagPairwise, 0, material)
	e.Keys[0] = key
	return key
}

func TestTransmitDataWithNoActiveBSSFails(t *testing.T) {
	l, _, _ := newTestLink()
	l.AddLink()
	dst := [6]byte{9, 9, 9, 9, 9, 9}
	if err := l.TransmitData(context.Background(), &dst, testProtocol, []byte("hi")); err == nil {
		t.Fatal("expected an error transmitting with no active BSS")
	}
}

func TestTransmitDataQueuesWhilePaused(t *testing.T) {
	l, drv, _ := newTestLink()
	l.AddLink()
	bssid := [6]byte{1, 2, 3, 4, 5, 6}
	installActiveWithKey(t, l, bssid, []byte("0123456789abcdef"))

	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()

	dst := [6]byte{9, 9, 9, 9, 9, 9}
	if err := l.TransmitData(context.Background(), &dst, testProtocol, []byte("queued")); err != nil {
		t.Fatalf("TransmitData: %v", err)
	}
	if drv.LastSent() != nil {
		t.Fatal("a queued packet should not reach the driver until resume")
	}

	l.mu.Lock()
	l.resumeLocked(context.Background())
	l.mu.Unlock()

	if drv.LastSent() == nil {
		t.Fatal("resume should flush the pause queue to the driver")
	}
}

func TestTransmitDataEncryptsAndRoundTripsWithInstalledKey(t *testing.T) {
	l, drv, _ := newTestLink()
	l.AddLink()
	bssid := [6]byte{1, 2, 3, 4, 5, 6}
	key := installActiveWithKey(t, l, bssid, []byte("0123456789abcdef"))

	dst := [6]byte{9, 9, 9, 9, 9, 9}
	payload := []byte("hello world")
	if err := l.TransmitData(context.Background(), &dst, testProtocol, payload); err != nil {
		t.Fatalf("TransmitData: %v", err)
	}

	raw := drv.LastSent()
	if raw == nil {
		t.Fatal("TransmitData did not hand anything to the driver")
	}
	hdr, body, err := frame.ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if !hdr.FC.Has(frame.FCProtected) {
		t.Fatal("transmitted frame should carry the Protected Frame bit")
	}

	aad := frame.CCMPAdditionalData(hdr.Bytes())
	pn, plaintext, err := ccmp.Decrypt(key.Material, hdr.Addr2, aad, body)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pn != 1 {
		t.Fatalf("packet number = %d, want 1 for the first transmitted frame", pn)
	}
	protocol, decapsulated, err := frame.ParseLLCSNAP(plaintext)
	if err != nil {
		t.Fatalf("ParseLLCSNAP: %v", err)
	}
	if protocol != testProtocol {
		t.Fatalf("protocol = %#x, want %#x", protocol, testProtocol)
	}
	if string(decapsulated) != "hello world" {
		t.Fatalf("decapsulated payload = %q, want %q", decapsulated, "hello world")
	}
}

func TestProcessReceivedPacketDecryptsAndDispatches(t *testing.T) {
	l, _, stack := newTestLink()
	l.AddLink()
	localAddr := l.props.LocalAddr
	bssid := [6]byte{1, 2, 3, 4, 5, 6}
	key := installActiveWithKey(t, l, bssid, []byte("0123456789abcdef"))

	header := frame.EncodeDataHeader(bssid, &localAddr, bssid, true, 1)
	aad := frame.CCMPAdditionalData(header)
	plaintext := encodeLLCSNAP(testProtocol, []byte("incoming"))
	sealed := ccmp.Encrypt(key.Material, 0, bssid, 1, aad, plaintext)
	raw := append(append([]byte(nil), header...), sealed...)

	l.ProcessReceivedPacket(raw, -55)

	if len(stack.Delivered) != 1 {
		t.Fatalf("delivered %d packets, want 1", len(stack.Delivered))
	}
	if stack.Delivered[0].EtherType != testProtocol {
		t.Fatalf("delivered ethertype = %#x, want %#x", stack.Delivered[0].EtherType, testProtocol)
	}
	if string(stack.Delivered[0].Payload) != "incoming" {
		t.Fatalf("delivered payload = %q, want %q", stack.Delivered[0].Payload, "incoming")
	}
}

func TestProcessReceivedPacketRejectsReplayedPacketNumber(t *testing.T) {
	l, _, stack := newTestLink()
	l.AddLink()
	localAddr := l.props.LocalAddr
	bssid := [6]byte{1, 2, 3, 4, 5, 6}
	key := installActiveWithKey(t, l, bssid, []byte("0123456789abcdef"))

	header := frame.EncodeDataHeader(bssid, &localAddr, bssid, true, 1)
	aad := frame.CCMPAdditionalData(header)
	plaintext := encodeLLCSNAP(testProtocol, []byte("first"))
	sealed := ccmp.Encrypt(key.Material, 0, bssid, 5, aad, plaintext)
	raw := append(append([]byte(nil), header...), sealed...)

	l.ProcessReceivedPacket(raw, -55)
	l.ProcessReceivedPacket(raw, -55) // replay of the same packet number.

	if len(stack.Delivered) != 1 {
		t.Fatalf("delivered %d packets, want exactly 1 (replay must be dropped)", len(stack.Delivered))
	}
}

func TestProcessReceivedPacketDropsFrameWithNoInstalledKey(t *testing.T) {
	l, _, stack := newTestLink()
	l.AddLink()
	localAddr := l.props.LocalAddr
	bssid := [6]byte{1, 2, 3, 4, 5, 6}

	l.mu.Lock()
	e := l.registry.UpdateFromProbe(bss.Probe{BSSID: bssid, SSID: "homenet", Rates: testRates, RSSI: -40, Observed: time.Now()})
	l.registry.SetActive(e)
	l.mu.Unlock()

	header := frame.EncodeDataHeader(bssid, &localAddr, bssid, true, 1)
	raw := append(header, make([]byte, ccmp.HeaderLen+ccmp.MICLen+8)...)

	l.ProcessReceivedPacket(raw, -55)
	if len(stack.Delivered) != 0 {
		t.Fatal("a protected frame with no installed key must not be dispatched")
	}
}
