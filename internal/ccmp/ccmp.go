// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ccmp

import "errors"

// HeaderLen is the length of the CCMP header inserted between the MAC
// header and the encrypted payload, IEEE Std 802.11-2016 Figure 12-12.
const HeaderLen = 8

// MICLen is the length of the MIC appended after the encrypted payload.
const MICLen = micSize

// ErrExtIVNotSet is returned by DecodeHeader when the ExtIV bit — always
// set for CCMP — is clear, meaning this is not a CCMP header.
var ErrExtIVNotSet = errors.New("ccmp: ExtIV bit not set in header")

// EncodeHeader builds the 8-byte CCMP header for packet number pn (a
// 48-bit counter) and key identifier keyID (0-3), IEEE Std 802.11-2016
// §9.4.2.49.4.
func EncodeHeader(pn uint64, keyID uint8) [HeaderLen]byte {
	var h [HeaderLen]byte
	h[0] = byte(pn)
	h[1] = byte(pn >> 8)
	h[2] = 0 // Reserved.
	h[3] = (keyID&0x03)<<6 | 0x20 // ExtIV (bit 5) always set for CCMP.
	h[4] = byte(pn >> 16)
	h[5] = byte(pn >> 24)
	h[6] = byte(pn >> 32)
	h[7] = byte(pn >> 40)
	return h
}

// DecodeHeader parses an 8-byte CCMP header, returning the packet number
// and key identifier.
func DecodeHeader(h [HeaderLen]byte) (pn uint64, keyID uint8, err error) {
	if h[3]&0x20 == 0 {
		return 0, 0, ErrExtIVNotSet
	}
	keyID = (h[3] >> 6) & 0x03
	pn = uint64(h[0]) | uint64(h[1])<<8 | uint64(h[4])<<16 | uint64(h[5])<<24 | uint64(h[6])<<32 | uint64(h[7])<<40
	return pn, keyID, nil
}

// nonce builds the 13-byte CCM nonce: priority (1 byte, 0 for non-QoS
// data), the transmitter address (6 bytes), and the packet number as 6
// bytes big-endian (most significant first), IEEE Std 802.11-2016
// §11.4.3.3.2.
func nonce(priority uint8, transmitter [6]byte, pn uint64) [nonceSize]byte {
	var n [nonceSize]byte
	n[0] = priority
	copy(n[1:7], transmitter[:])
	n[7] = byte(pn >> 40)
	n[8] = byte(pn >> 32)
	n[9] = byte(pn >> 24)
	n[10] = byte(pn >> 16)
	n[11] = byte(pn >> 8)
	n[12] = byte(pn)
	return n
}

// Encrypt produces the CCMP header + ciphertext + MIC for one MPDU.
// transmitter is the frame's source/transmitter address (used only to
// build the nonce); aad is the masked MAC-header fields protected by the
// MIC (frame control with mutable bits zeroed, all address fields, masked
// sequence control) — callers build it via the frame codec.
func Encrypt(key []byte, keyID uint8, transmitter [6]byte, pn uint64, aad, plaintext []byte) []byte {
	n := nonce(0, transmitter, pn)
	sealed, err := seal(key, n[:], aad, plaintext)
	if err != nil {
		// key length is validated by the caller before a Key is ever
		// installed; a failure here means an internal invariant broke.
		panic(err)
	}
	h := EncodeHeader(pn, keyID)
	out := make([]byte, HeaderLen+len(sealed))
	copy(out, h[:])
	copy(out[HeaderLen:], sealed)
	return out
}

// Decrypt recovers the plaintext and packet number from a CCMP-protected
// MPDU body (header + ciphertext + MIC). It does not itself enforce replay
// ordering — the caller (the data path, per spec §4.5/§8 P3) checks the
// returned pn against the key's replay counter and only advances the
// counter once the MIC has verified.
func Decrypt(key []byte, transmitter [6]byte, aad, body []byte) (pn uint64, plaintext []byte, err error) {
	if len(body) < HeaderLen+MICLen {
		return 0, nil, errors.New("ccmp: body shorter than header+MIC")
	}
	var h [HeaderLen]byte
	copy(h[:], body[:HeaderLen])
	pn, _, err = DecodeHeader(h)
	if err != nil {
		return 0, nil, err
	}
	n := nonce(0, transmitter, pn)
	plaintext, err = open(key, n[:], aad, body[HeaderLen:])
	if err != nil {
		return 0, nil, err
	}
	return pn, plaintext, nil
}
