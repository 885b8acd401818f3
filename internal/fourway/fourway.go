// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fourway implements the Supplicant (station) role of the IEEE
// 802.11 four-way key handshake: it validates messages 1 and 3 from the
// AP's Authenticator, derives the PTK, and emits messages 2 and 4. Spec §1
// treats the handshake as an external "authenticator submodule, assumed
// available"; this package is the concrete implementation the teacher
// shipped tests for (wlan/eapol/handshake) but never checked in, so that
// spec scenarios S2–S4 exercise a real handshake rather than a mock.
package fourway

import (
	"crypto/rand"
	"errors"

	"go.fuchsia.dev/wlanstation/internal/crypto"
	"go.fuchsia.dev/wlanstation/internal/eapol"
	"go.fuchsia.dev/wlanstation/internal/elements"
	"go.fuchsia.dev/wlanstation/internal/keywrap"
)

// KeyInstall is a derived key the handshake hands to its owner for
// installation into the active BSS entry's key array (spec §3 Key,
// §4.4 "non-null pairwise key and group key installed ... in slots 0
// and 1 respectively").
type KeyInstall struct {
	Slot     int // 0 = pairwise, 1 = group, per spec §8 S2.
	Pairwise bool
	Material []byte
	Cipher   elements.CipherSuite
	PeerAddr [6]uint8
}

// Transport is the EAPOL/MLME boundary the handshake sends through: one
// call per outgoing EAPOL-Key frame and one call once both keys are ready
// to install.
type Transport interface {
	SendEAPOLRequest(srcAddr, dstAddr [6]uint8, f *eapol.KeyFrame) error
	SendKeys(keys []KeyInstall) error
}

// Config configures one handshake instance. AssocRSNE is the RSN this
// station sent in its association request; BeaconRSNE is the RSN the AP
// advertised. This package does not read BeaconRSNE: the association-time
// rate/cipher check already ran in the state machine.
type Config struct {
	AssocRSNE  *elements.RSN
	BeaconRSNE *elements.RSN
	PeerAddr   [6]uint8 // AP / Authenticator address.
	StaAddr    [6]uint8 // this station's address.
	Transport  Transport
	SSID       string
	PassPhrase string
}

type state int

const (
	stateExpectingMessage1 state = iota
	stateExpectingMessage3
	stateComplete
)

// FourWay drives one handshake attempt to completion.
type FourWay struct {
	config Config
	state  state
	aNonce [32]byte
	sNonce [32]byte
	ptk    *crypto.PTK
	replay [8]uint8
}

// NewFourWay constructs a handshake ready to receive message 1.
func NewFourWay(config Config) *FourWay {
	return &FourWay{config: config, state: stateExpectingMessage1}
}

var (
	// ErrInvalidDescriptor covers any message whose Key Information field
	// does not match the CCMP/PSK descriptor this core negotiates.
	ErrInvalidDescriptor = errors.New("fourway: invalid key descriptor")
	ErrUnexpectedMessage = errors.New("fourway: message not valid in current state")
	ErrInvalidMIC        = errors.New("fourway: invalid MIC")
	ErrMissingKeyData    = errors.New("fourway: message 3 missing encrypted key data")
)

// HandleEAPOLKeyFrame processes one inbound EAPOL-Key frame from the AP.
// A message 1 is accepted in any state (APs retransmit message 1 on
// timeout; spec's teacher test coverage asserts the station must respond
// afresh, with a newly generated sNonce, rather than reject the replay).
func (fw *FourWay) HandleEAPOLKeyFrame(f *eapol.KeyFrame) error {
	if isMessage1(f) {
		return fw.handleMessage1(f)
	}
	if fw.state != stateExpectingMessage3 {
		return ErrUnexpectedMessage
	}
	return fw.handleMessage3(f)
}

// isMessage1 recognises EAPOL-Key message 1 by ACK set and MIC clear;
// validateMessage1 then checks the remaining Key Information bits.
func isMessage1(f *eapol.KeyFrame) bool {
	return f.Info.IsSet(eapol.KeyInfo_ACK) && !f.Info.IsSet(eapol.KeyInfo_MIC)
}

func validateMessage1(f *eapol.KeyFrame) error {
	if f.Info&eapol.KeyInfo_DescriptorVersion != eapol.DescriptorVersionHMACSHA1AES {
		return ErrInvalidDescriptor
	}
	if !f.Info.IsSet(eapol.KeyInfo_Type) {
		return ErrInvalidDescriptor
	}
	if f.Info.IsSet(eapol.KeyInfo_SMK_Message) ||
		f.Info.IsSet(eapol.KeyInfo_MIC) ||
		f.Info.IsSet(eapol.KeyInfo_Secure) ||
		f.Info.IsSet(eapol.KeyInfo_Error) ||
		f.Info.IsSet(eapol.KeyInfo_Request) ||
		f.Info.IsSet(eapol.KeyInfo_Encrypted_KeyData) {
		return ErrInvalidDescriptor
	}
	if f.Length != 16 {
		return ErrInvalidDescriptor
	}
	var zero32 [32]byte
	if f.Nonce == zero32 {
		return ErrInvalidDescriptor
	}
	var zero16 [16]byte
	if f.IV != zero16 {
		return ErrInvalidDescriptor
	}
	var zero8 [8]byte
	if f.RSC != zero8 {
		return ErrInvalidDescriptor
	}
	if int(f.DataLength) != len(f.Data) {
		return ErrInvalidDescriptor
	}
	return nil
}

func (fw *FourWay) handleMessage1(f *eapol.KeyFrame) error {
	if err := validateMessage1(f); err != nil {
		return err
	}

	fw.aNonce = f.Nonce
	if _, err := rand.Read(fw.sNonce[:]); err != nil {
		return err
	}
	fw.replay = f.ReplayCounter

	pmk, err := crypto.PSK(fw.config.PassPhrase, fw.config.SSID)
	if err != nil {
		return err
	}
	fw.ptk = crypto.DeriveKeys(pmk, fw.config.StaAddr[:], fw.config.PeerAddr[:], fw.aNonce[:], fw.sNonce[:])

	msg2 := eapol.NewEmptyKeyFrame(defaultMICBits)
	msg2.DescriptorType = f.DescriptorType
	msg2.Info = f.Info.Update(
		eapol.KeyInfo_Install|eapol.KeyInfo_ACK,
		eapol.KeyInfo_MIC,
	)
	msg2.Length = 0
	msg2.ReplayCounter = fw.replay
	msg2.Nonce = fw.sNonce
	msg2.DataLength = uint16(len(fw.config.AssocRSNE.Bytes()))
	msg2.Data = fw.config.AssocRSNE.Bytes()
	msg2.SetMIC(fw.ptk.KCK)

	if err := fw.config.Transport.SendEAPOLRequest(fw.config.StaAddr, fw.config.PeerAddr, msg2); err != nil {
		return err
	}
	fw.state = stateExpectingMessage3
	return nil
}

const defaultMICBits = 128

func (fw *FourWay) handleMessage3(f *eapol.KeyFrame) error {
	if f.Info&eapol.KeyInfo_DescriptorVersion != eapol.DescriptorVersionHMACSHA1AES {
		return ErrInvalidDescriptor
	}
	if !f.Info.IsSet(eapol.KeyInfo_Install) || !f.Info.IsSet(eapol.KeyInfo_ACK) || !f.Info.IsSet(eapol.KeyInfo_MIC) {
		return ErrInvalidDescriptor
	}
	if f.Nonce != fw.aNonce {
		return ErrInvalidDescriptor
	}
	if !f.HasValidMIC(fw.ptk.KCK) {
		return ErrInvalidMIC
	}

	var gtk []byte
	if f.Info.IsSet(eapol.KeyInfo_Encrypted_KeyData) {
		if len(f.Data) == 0 {
			return ErrMissingKeyData
		}
		plain, err := keywrap.Unwrap(fw.ptk.KEK, f.Data)
		if err != nil {
			return err
		}
		gtk = plain
	}

	msg4 := eapol.NewEmptyKeyFrame(defaultMICBits)
	msg4.DescriptorType = f.DescriptorType
	msg4.Info = f.Info.Update(
		eapol.KeyInfo_Install|eapol.KeyInfo_ACK|eapol.KeyInfo_Encrypted_KeyData,
		eapol.KeyInfo_MIC|eapol.KeyInfo_Secure,
	)
	msg4.Length = 0
	msg4.ReplayCounter = f.ReplayCounter
	msg4.SetMIC(fw.ptk.KCK)

	if err := fw.config.Transport.SendEAPOLRequest(fw.config.StaAddr, fw.config.PeerAddr, msg4); err != nil {
		return err
	}

	keys := []KeyInstall{{
		Slot:     0,
		Pairwise: true,
		Material: append([]byte(nil), fw.ptk.TK...),
		Cipher:   elements.CipherSuite{OUI: elements.DefaultCipherSuiteOUI, Type: elements.CipherSuiteType_CCMP128},
		PeerAddr: fw.config.PeerAddr,
	}}
	if gtk != nil {
		keys = append(keys, KeyInstall{
			Slot:     1,
			Pairwise: false,
			Material: gtk,
			Cipher:   elements.CipherSuite{OUI: elements.DefaultCipherSuiteOUI, Type: elements.CipherSuiteType_CCMP128},
			PeerAddr: broadcastAddr,
		})
	}
	if err := fw.config.Transport.SendKeys(keys); err != nil {
		return err
	}

	fw.state = stateComplete
	return nil
}

var broadcastAddr = [6]uint8{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Complete reports whether message 3 was accepted and its keys handed to
// the transport: the pairwise key, plus the group key when message 3
// carried encrypted key data.
func (fw *FourWay) Complete() bool { return fw.state == stateComplete }
