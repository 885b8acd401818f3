// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package eapol implements the wire format of the EAPOL-Key frame, IEEE
// Std 802.1X-2010 §11.9, as specialized by IEEE Std 802.11-2016 §12.7 for
// the four-way handshake. This is the "EAPOL/4-way-handshake message
// parser" spec §1 treats as an external collaborator assumed available;
// this module supplies the implementation the collaborator boundary
// describes, reconstructed from the teacher's handshake test vectors.
package eapol

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
)

// KeyInfo is the 16-bit Key Information field of an EAPOL-Key frame.
type KeyInfo uint16

// Key Information field bit masks, IEEE Std 802.11-2016, Figure 12-35.
const (
	KeyInfo_DescriptorVersion KeyInfo = 0x0007
	KeyInfo_Type              KeyInfo = 0x0008
	KeyInfo_Install           KeyInfo = 0x0040
	KeyInfo_ACK               KeyInfo = 0x0080
	KeyInfo_MIC               KeyInfo = 0x0100
	KeyInfo_Secure            KeyInfo = 0x0200
	KeyInfo_Error             KeyInfo = 0x0400
	KeyInfo_Request           KeyInfo = 0x0800
	KeyInfo_Encrypted_KeyData KeyInfo = 0x1000
	KeyInfo_SMK_Message       KeyInfo = 0x2000
)

// Descriptor versions, the low 3 bits of KeyInfo.
const (
	DescriptorVersionHMACMD5ARC4   = 1 // WPA1/TKIP.
	DescriptorVersionHMACSHA1AES   = 2 // WPA2/CCMP — the only version this core negotiates.
	DescriptorVersionAESCMACAES    = 3
)

// Update clears the bits in clear then sets the bits in set, returning the
// result. Masks are not required to be disjoint; set is applied last.
func (k KeyInfo) Update(clear, set KeyInfo) KeyInfo {
	return (k &^ clear) | set
}

// IsSet reports whether every bit in mask is set.
func (k KeyInfo) IsSet(mask KeyInfo) bool {
	return k&mask == mask
}

const (
	protocolVersion   = 2 // IEEE 802.1X-2010.
	packetTypeEAPOLKey = 3
	descriptorTypeRSN  = 2

	fixedBodyLen = 1 + 2 + 2 + 8 + 32 + 16 + 8 + 8 // descriptor..reserved, before MIC
)

// defaultMICLength is the MIC length for descriptor version 2 (HMAC-SHA1,
// truncated to 128 bits) — the only version this module produces.
const defaultMICLength = 16

// ErrTooShort is returned when raw is shorter than the fixed EAPOL-Key
// header.
var ErrTooShort = errors.New("eapol: frame shorter than fixed header")

// ErrDataLengthMismatch is returned when the declared Key Data Length does
// not match the number of bytes actually present.
var ErrDataLengthMismatch = errors.New("eapol: key data length mismatch")

// KeyFrame is a parsed EAPOL-Key frame.
type KeyFrame struct {
	DescriptorType uint8
	Info           KeyInfo
	Length         uint16
	ReplayCounter  [8]uint8
	Nonce          [32]uint8
	IV             [16]uint8
	RSC            [8]uint8
	Reserved       [8]uint8
	MIC            []byte
	DataLength     uint16
	Data           []byte
}

// NewEmptyKeyFrame allocates a KeyFrame with a zeroed MIC field micBits
// bits long (128 for the HMAC-SHA1 descriptor this module uses).
func NewEmptyKeyFrame(micBits int) *KeyFrame {
	return &KeyFrame{
		DescriptorType: descriptorTypeRSN,
		MIC:            make([]byte, micBits/8),
	}
}

// Bytes serializes the frame, including the 4-byte 802.1X header. The MIC
// field is written as-is; callers that need a valid MIC must call SetMIC
// first.
func (f *KeyFrame) Bytes() []byte {
	bodyLen := fixedBodyLen + len(f.MIC) + 2 + len(f.Data)
	out := make([]byte, 4+bodyLen)
	out[0] = protocolVersion
	out[1] = packetTypeEAPOLKey
	binary.BigEndian.PutUint16(out[2:4], uint16(bodyLen))

	off := 4
	out[off] = f.DescriptorType
	off++
	binary.BigEndian.PutUint16(out[off:off+2], uint16(f.Info))
	off += 2
	binary.BigEndian.PutUint16(out[off:off+2], f.Length)
	off += 2
	copy(out[off:off+8], f.ReplayCounter[:])
	off += 8
	copy(out[off:off+32], f.Nonce[:])
	off += 32
	copy(out[off:off+16], f.IV[:])
	off += 16
	copy(out[off:off+8], f.RSC[:])
	off += 8
	copy(out[off:off+8], f.Reserved[:])
	off += 8
	copy(out[off:off+len(f.MIC)], f.MIC)
	off += len(f.MIC)
	binary.BigEndian.PutUint16(out[off:off+2], f.DataLength)
	off += 2
	copy(out[off:off+len(f.Data)], f.Data)

	return out
}

// micInput returns the frame serialized with the MIC field zeroed, the
// input HMAC is computed over (IEEE Std 802.11-2016 12.7.6.2 et seq).
func (f *KeyFrame) micInput() []byte {
	clone := *f
	clone.MIC = make([]byte, len(f.MIC))
	return clone.Bytes()
}

// SetMIC computes and installs the frame's MIC under kck, a descriptor
// version 2 (HMAC-SHA1, truncated to 128 bits) key confirmation key.
func (f *KeyFrame) SetMIC(kck []byte) {
	mac := hmac.New(sha1.New, kck)
	mac.Write(f.micInput())
	sum := mac.Sum(nil)
	copy(f.MIC, sum[:len(f.MIC)])
}

// HasValidMIC recomputes the MIC under kck and reports whether it matches
// the frame's MIC field.
func (f *KeyFrame) HasValidMIC(kck []byte) bool {
	mac := hmac.New(sha1.New, kck)
	mac.Write(f.micInput())
	sum := mac.Sum(nil)
	if len(f.MIC) > len(sum) {
		return false
	}
	return hmac.Equal(sum[:len(f.MIC)], f.MIC)
}

// ParseKeyFrame parses a wire-format EAPOL-Key frame. micLen is the MIC
// field length in bytes, fixed by the descriptor version negotiated for
// this handshake (16 for the HMAC-SHA1 descriptor).
func ParseKeyFrame(raw []byte, micLen int) (*KeyFrame, error) {
	fixed := 4 + fixedBodyLen + micLen + 2
	if len(raw) < fixed {
		return nil, ErrTooShort
	}
	f := &KeyFrame{MIC: make([]byte, micLen)}
	off := 4
	f.DescriptorType = raw[off]
	off++
	f.Info = KeyInfo(binary.BigEndian.Uint16(raw[off : off+2]))
	off += 2
	f.Length = binary.BigEndian.Uint16(raw[off : off+2])
	off += 2
	copy(f.ReplayCounter[:], raw[off:off+8])
	off += 8
	copy(f.Nonce[:], raw[off:off+32])
	off += 32
	copy(f.IV[:], raw[off:off+16])
	off += 16
	copy(f.RSC[:], raw[off:off+8])
	off += 8
	copy(f.Reserved[:], raw[off:off+8])
	off += 8
	copy(f.MIC, raw[off:off+micLen])
	off += micLen
	f.DataLength = binary.BigEndian.Uint16(raw[off : off+2])
	off += 2
	if len(raw)-off != int(f.DataLength) {
		return nil, ErrDataLengthMismatch
	}
	f.Data = append([]byte(nil), raw[off:]...)
	return f, nil
}
