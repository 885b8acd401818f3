// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package fourway_test

import (
	"bytes"
	"testing"

	"go.fuchsia.dev/wlanstation/internal/crypto"
	"go.fuchsia.dev/wlanstation/internal/eapol"
	"go.fuchsia.dev/wlanstation/internal/elements"
	. "go.fuchsia.dev/wlanstation/internal/fourway"
	"go.fuchsia.dev/wlanstation/internal/keywrap"
)

var (
	testStaAddr  = [6]uint8{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	testPeerAddr = [6]uint8{0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5}
	testSSID     = "TestSSID"
	testPassword = "TestPassword1"
)

type fakeTransport struct {
	lastEAPOL *eapol.KeyFrame
	sendErr   error
	keys      []KeyInstall
	keysErr   error
}

func (f *fakeTransport) SendEAPOLRequest(srcAddr, dstAddr [6]uint8, frame *eapol.KeyFrame) error {
	f.lastEAPOL = frame
	return f.sendErr
}

func (f *fakeTransport) SendKeys(keys []KeyInstall) error {
	f.keys = keys
	return f.keysErr
}

func testConfig(transport Transport) Config {
	rsne := elements.DefaultStationRSN()
	return Config{
		AssocRSNE:  rsne,
		BeaconRSNE: rsne,
		PeerAddr:   testPeerAddr,
		StaAddr:    testStaAddr,
		Transport:  transport,
		SSID:       testSSID,
		PassPhrase: testPassword,
	}
}

func createValidMessage1() *eapol.KeyFrame {
	f := eapol.NewEmptyKeyFrame(128)
	f.Info = f.Info.Update(0, eapol.KeyInfo_ACK|eapol.KeyInfo_Type|eapol.DescriptorVersionHMACSHA1AES)
	f.Length = 16
	f.ReplayCounter = [8]uint8{2}
	for i := range f.Nonce {
		f.Nonce[i] = byte(i + 1)
	}
	return f
}

func TestSupplicant_ResponseToValidMessage1(t *testing.T) {
	transport := &fakeTransport{}
	fw := NewFourWay(testConfig(transport))

	if err := fw.HandleEAPOLKeyFrame(createValidMessage1()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg2 := transport.lastEAPOL
	if msg2 == nil {
		t.Fatal("expected a message 2 to be sent")
	}
	if !msg2.Info.IsSet(eapol.KeyInfo_MIC) {
		t.Fatal("message 2 must have the MIC bit set")
	}
	if msg2.Info.IsSet(eapol.KeyInfo_ACK) {
		t.Fatal("message 2 must not have the ACK bit set")
	}
	if msg2.Info.IsSet(eapol.KeyInfo_Install) {
		t.Fatal("message 2 must not have the Install bit set")
	}
	var zeroNonce [32]byte
	if msg2.Nonce == zeroNonce {
		t.Fatal("message 2 must carry a generated sNonce")
	}
	if len(msg2.Data) == 0 {
		t.Fatal("message 2 must carry the association RSNE")
	}
}

func TestSupplicant_ResponseToValidReplayedMessage1(t *testing.T) {
	transport := &fakeTransport{}
	fw := NewFourWay(testConfig(transport))

	if err := fw.HandleEAPOLKeyFrame(createValidMessage1()); err != nil {
		t.Fatalf("unexpected error on first message 1: %v", err)
	}
	firstNonce := transport.lastEAPOL.Nonce

	if err := fw.HandleEAPOLKeyFrame(createValidMessage1()); err != nil {
		t.Fatalf("unexpected error on replayed message 1: %v", err)
	}
	secondNonce := transport.lastEAPOL.Nonce

	if firstNonce == secondNonce {
		t.Fatal("sNonce must not be reused across message 1 retransmissions")
	}
}

func TestSupplicant_RejectsInvalidMessage1(t *testing.T) {
	cases := map[string]func(*eapol.KeyFrame){
		"wrong descriptor version": func(f *eapol.KeyFrame) {
			f.Info = f.Info.Update(eapol.KeyInfo_DescriptorVersion, 1)
		},
		"missing type bit": func(f *eapol.KeyFrame) {
			f.Info = f.Info.Update(eapol.KeyInfo_Type, 0)
		},
		"MIC bit set": func(f *eapol.KeyFrame) {
			f.Info = f.Info.Update(0, eapol.KeyInfo_MIC)
		},
		"secure bit set": func(f *eapol.KeyFrame) {
			f.Info = f.Info.Update(0, eapol.KeyInfo_Secure)
		},
		"wrong length": func(f *eapol.KeyFrame) {
			f.Length = 32
		},
		"zero nonce": func(f *eapol.KeyFrame) {
			f.Nonce = [32]uint8{}
		},
		"non-zero IV": func(f *eapol.KeyFrame) {
			f.IV[0] = 1
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			transport := &fakeTransport{}
			fw := NewFourWay(testConfig(transport))
			msg1 := createValidMessage1()
			mutate(msg1)

			if err := fw.HandleEAPOLKeyFrame(msg1); err == nil {
				t.Fatal("expected an error")
			}
			if transport.lastEAPOL != nil {
				t.Fatal("supplicant must not respond to an invalid message 1")
			}
		})
	}
}

// deriveExpectedPTK recomputes the PTK the way the handshake should, so
// tests can build a well-formed message 3 without depending on fourway's
// unexported state.
func deriveExpectedPTK(t *testing.T, msg1 *eapol.KeyFrame, sNonce [32]byte) *crypto.PTK {
	t.Helper()
	pmk, err := crypto.PSK(testPassword, testSSID)
	if err != nil {
		t.Fatalf("PSK: %v", err)
	}
	return crypto.DeriveKeys(pmk, testStaAddr[:], testPeerAddr[:], msg1.Nonce[:], sNonce[:])
}

func TestSupplicant_CompletesHandshakeOnValidMessage3(t *testing.T) {
	transport := &fakeTransport{}
	fw := NewFourWay(testConfig(transport))

	msg1 := createValidMessage1()
	if err := fw.HandleEAPOLKeyFrame(msg1); err != nil {
		t.Fatalf("message 1: %v", err)
	}
	msg2 := transport.lastEAPOL
	ptk := deriveExpectedPTK(t, msg1, msg2.Nonce)

	gtk := bytes.Repeat([]byte{0x11}, 16)
	wrapped, err := keywrap.Wrap(ptk.KEK, gtk)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	msg3 := eapol.NewEmptyKeyFrame(128)
	msg3.Info = msg1.Info.Update(0, eapol.KeyInfo_Install|eapol.KeyInfo_ACK|eapol.KeyInfo_MIC|eapol.KeyInfo_Encrypted_KeyData)
	msg3.Nonce = msg1.Nonce
	msg3.ReplayCounter = [8]uint8{3}
	msg3.Data = wrapped
	msg3.DataLength = uint16(len(wrapped))
	msg3.SetMIC(ptk.KCK)

	if err := fw.HandleEAPOLKeyFrame(msg3); err != nil {
		t.Fatalf("unexpected error on message 3: %v", err)
	}

	msg4 := transport.lastEAPOL
	if msg4 == nil || msg4 == msg2 {
		t.Fatal("expected message 4 to be sent")
	}
	if !msg4.Info.IsSet(eapol.KeyInfo_Secure) {
		t.Fatal("message 4 must have the Secure bit set")
	}
	if !fw.Complete() {
		t.Fatal("handshake should report complete")
	}

	if len(transport.keys) != 2 {
		t.Fatalf("expected pairwise and group keys installed, got %d", len(transport.keys))
	}
	if !bytes.Equal(transport.keys[0].Material, ptk.TK) {
		t.Fatal("slot 0 key must be the derived TK")
	}
	if !bytes.Equal(transport.keys[1].Material, gtk) {
		t.Fatal("slot 1 key must be the unwrapped GTK")
	}
}

func TestSupplicant_RejectsMessage3WithInvalidMIC(t *testing.T) {
	transport := &fakeTransport{}
	fw := NewFourWay(testConfig(transport))

	msg1 := createValidMessage1()
	if err := fw.HandleEAPOLKeyFrame(msg1); err != nil {
		t.Fatalf("message 1: %v", err)
	}

	msg3 := eapol.NewEmptyKeyFrame(128)
	msg3.Info = msg1.Info.Update(0, eapol.KeyInfo_Install|eapol.KeyInfo_ACK|eapol.KeyInfo_MIC)
	msg3.Nonce = msg1.Nonce
	// MIC left zeroed: wrong for any key.

	if err := fw.HandleEAPOLKeyFrame(msg3); err != ErrInvalidMIC {
		t.Fatalf("expected ErrInvalidMIC, got %v", err)
	}
	if fw.Complete() {
		t.Fatal("handshake must not complete on an invalid message 3")
	}
}

func TestSupplicant_RejectsMessage3BeforeMessage1(t *testing.T) {
	transport := &fakeTransport{}
	fw := NewFourWay(testConfig(transport))

	msg3 := eapol.NewEmptyKeyFrame(128)
	msg3.Info = msg3.Info.Update(0, eapol.KeyInfo_Install|eapol.KeyInfo_ACK|eapol.KeyInfo_MIC)

	if err := fw.HandleEAPOLKeyFrame(msg3); err != ErrUnexpectedMessage {
		t.Fatalf("expected ErrUnexpectedMessage, got %v", err)
	}
}
