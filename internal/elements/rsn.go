// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package elements

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidElementID is returned when the leading byte does not name the
// RSN element.
var ErrInvalidElementID = errors.New("elements: not an RSN element")

// ErrElementTooShort is returned when the element lacks even the fixed
// 2-byte header + 2-byte version field.
var ErrElementTooShort = errors.New("elements: RSN element too short")

// ErrVersionMismatch is returned when the RSN version field is not 1.
var ErrVersionMismatch = errors.New("elements: unsupported RSN version")

// RSN is the parsed form of the Robust Security Network element, IEEE Std
// 802.11-2016 §9.4.2.25. Every field past Version is optional: a real
// beacon or probe response may truncate the element after any section,
// in which case the remaining fields stay at their zero value.
type RSN struct {
	Version         uint16
	GroupData       *CipherSuite
	PairwiseCiphers []CipherSuite
	AKMs            []AKMSuite
	Caps            *uint16
	PMKIDs          []PMKID
	GroupMgmt       *CipherSuite
}

// NewEmptyRSN returns an RSN with every optional field unset.
func NewEmptyRSN() *RSN {
	return &RSN{}
}

// DefaultStationRSN is the fixed RSN the station advertises in association
// requests when joining a WPA2-PSK BSS: version 1, group CCMP, one pairwise
// CCMP, one AKM PSK, zero capabilities — a 20-byte element body, 22 bytes
// on the wire including the 2-byte element header.
func DefaultStationRSN() *RSN {
	caps := uint16(0)
	ccmp := CipherSuite{OUI: DefaultCipherSuiteOUI, Type: CipherSuiteType_CCMP128}
	psk := AKMSuite{OUI: DefaultCipherSuiteOUI, Type: AkmSuiteType_PSK}
	return &RSN{
		Version:         1,
		GroupData:       &ccmp,
		PairwiseCiphers: []CipherSuite{ccmp},
		AKMs:            []AKMSuite{psk},
		Caps:            &caps,
	}
}

// Bytes serializes the RSN element, including its 2-byte TLV header.
func (r *RSN) Bytes() []byte {
	body := make([]byte, 0, 64)
	var v [2]byte
	binary.LittleEndian.PutUint16(v[:], r.Version)
	body = append(body, v[:]...)

	if r.GroupData == nil {
		return finishRSN(body)
	}
	gd := r.GroupData.bytes()
	body = append(body, gd[:]...)

	if len(r.PairwiseCiphers) == 0 {
		return finishRSN(body)
	}
	body = appendU16(body, uint16(len(r.PairwiseCiphers)))
	for _, c := range r.PairwiseCiphers {
		b := c.bytes()
		body = append(body, b[:]...)
	}

	if len(r.AKMs) == 0 {
		return finishRSN(body)
	}
	body = appendU16(body, uint16(len(r.AKMs)))
	for _, a := range r.AKMs {
		b := a.bytes()
		body = append(body, b[:]...)
	}

	if r.Caps == nil {
		return finishRSN(body)
	}
	body = appendU16(body, *r.Caps)

	if len(r.PMKIDs) == 0 {
		return finishRSN(body)
	}
	body = appendU16(body, uint16(len(r.PMKIDs)))
	for _, p := range r.PMKIDs {
		body = append(body, p[:]...)
	}

	if r.GroupMgmt == nil {
		return finishRSN(body)
	}
	gm := r.GroupMgmt.bytes()
	body = append(body, gm[:]...)

	return finishRSN(body)
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func finishRSN(body []byte) []byte {
	out := make([]byte, 0, len(body)+2)
	out = append(out, IdRSN, uint8(len(body)))
	out = append(out, body...)
	return out
}

// ParseRSN parses a wire-format RSN element. Every optional section past
// Version is guarded by a length check; when the declared count of a list
// would run past the end of raw, that section and every subsequent one are
// left at their zero value rather than rejecting the element (spec §4.4,
// §8 B2).
func ParseRSN(raw []byte) (*RSN, error) {
	if len(raw) < 2 || raw[0] != IdRSN {
		return nil, ErrInvalidElementID
	}
	declared := int(raw[1])
	body := raw[2:]
	if declared > len(body) {
		declared = len(body)
	}
	body = body[:declared]

	if len(body) < 2 {
		return nil, ErrElementTooShort
	}
	r := &RSN{}
	r.Version = binary.LittleEndian.Uint16(body[0:2])
	if r.Version != 1 {
		return nil, ErrVersionMismatch
	}
	off := 2

	if len(body)-off < 4 {
		return r, nil
	}
	gd := readCipherSuite(body[off : off+4])
	r.GroupData = &gd
	off += 4

	if len(body)-off < 2 {
		return r, nil
	}
	pairCount := int(binary.LittleEndian.Uint16(body[off : off+2]))
	if len(body)-off-2 < pairCount*4 {
		return r, nil
	}
	off += 2
	r.PairwiseCiphers = make([]CipherSuite, pairCount)
	for i := 0; i < pairCount; i++ {
		r.PairwiseCiphers[i] = readCipherSuite(body[off : off+4])
		off += 4
	}

	if len(body)-off < 2 {
		return r, nil
	}
	akmCount := int(binary.LittleEndian.Uint16(body[off : off+2]))
	if len(body)-off-2 < akmCount*4 {
		return r, nil
	}
	off += 2
	r.AKMs = make([]AKMSuite, akmCount)
	for i := 0; i < akmCount; i++ {
		r.AKMs[i] = readAKMSuite(body[off : off+4])
		off += 4
	}

	if len(body)-off < 2 {
		return r, nil
	}
	caps := binary.LittleEndian.Uint16(body[off : off+2])
	r.Caps = &caps
	off += 2

	if len(body)-off < 2 {
		return r, nil
	}
	pmkidCount := int(binary.LittleEndian.Uint16(body[off : off+2]))
	if len(body)-off-2 < pmkidCount*16 {
		return r, nil
	}
	off += 2
	r.PMKIDs = make([]PMKID, pmkidCount)
	for i := 0; i < pmkidCount; i++ {
		copy(r.PMKIDs[i][:], body[off:off+16])
		off += 16
	}

	if len(body)-off < 4 {
		return r, nil
	}
	gm := readCipherSuite(body[off : off+4])
	r.GroupMgmt = &gm

	return r, nil
}

func readCipherSuite(b []byte) CipherSuite {
	return CipherSuite{OUI: [3]byte{b[0], b[1], b[2]}, Type: b[3]}
}

func readAKMSuite(b []byte) AKMSuite {
	return AKMSuite{OUI: [3]byte{b[0], b[1], b[2]}, Type: b[3]}
}

// HasCCMP reports whether the RSN advertises CCMP as both the group and (at
// least one) pairwise cipher — the only combination this core accepts.
func (r *RSN) HasCCMP() bool {
	if r.GroupData == nil || !r.GroupData.IsCCMP() {
		return false
	}
	for _, c := range r.PairwiseCiphers {
		if c.IsCCMP() {
			return true
		}
	}
	return false
}

// HasPSK reports whether the RSN's AKM list includes PSK or PSK-SHA256.
func (r *RSN) HasPSK() bool {
	for _, a := range r.AKMs {
		if a.IsPSK() {
			return true
		}
	}
	return false
}
