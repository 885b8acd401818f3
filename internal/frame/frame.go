// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package frame builds and parses 802.11 MAC frames: the fixed
// management/data headers, the LLC+SNAP prefix data frames carry, and the
// information-element TLV region management frames carry — spec §4.1 (C2,
// the frame codec). It reuses the teacher-descended elements package for
// the TLV iterator rather than duplicating it.
package frame

import (
	"encoding/binary"
	"errors"

	"go.fuchsia.dev/wlanstation/internal/elements"
)

// FrameControl is the 16-bit frame-control word common to every 802.11
// frame, IEEE Std 802.11-2016 Figure 9-1.
type FrameControl uint16

const (
	fcProtocolVersionMask = 0x0003
	fcTypeMask            = 0x000c
	fcTypeShift           = 2
	fcSubtypeMask         = 0x00f0
	fcSubtypeShift        = 4

	FCToDS      FrameControl = 0x0100
	FCFromDS    FrameControl = 0x0200
	FCMoreFrag  FrameControl = 0x0400
	FCRetry     FrameControl = 0x0800
	FCPwrMgmt   FrameControl = 0x1000
	FCMoreData  FrameControl = 0x2000
	FCProtected FrameControl = 0x4000
	FCOrder     FrameControl = 0x8000
)

// Frame types, IEEE Std 802.11-2016 Table 9-1.
const (
	TypeManagement uint8 = 0
	TypeControl    uint8 = 1
	TypeData       uint8 = 2
)

// Management subtypes used by this core.
const (
	SubtypeAssocReq    uint8 = 0x0
	SubtypeAssocResp   uint8 = 0x1
	SubtypeReassocReq  uint8 = 0x2
	SubtypeReassocResp uint8 = 0x3
	SubtypeProbeReq    uint8 = 0x4
	SubtypeProbeResp   uint8 = 0x5
	SubtypeBeacon      uint8 = 0x8
	SubtypeDisassoc    uint8 = 0xa
	SubtypeAuth        uint8 = 0xb
	SubtypeDeauth      uint8 = 0xc
)

// Data subtypes used by this core.
const (
	SubtypeData     uint8 = 0x0
	SubtypeNullData uint8 = 0x4
)

func NewFrameControl(typ, subtype uint8, flags FrameControl) FrameControl {
	fc := FrameControl(uint16(typ&0x3)<<fcTypeShift | uint16(subtype&0xf)<<fcSubtypeShift)
	return fc | flags
}

func (fc FrameControl) Type() uint8    { return uint8((fc & fcTypeMask) >> fcTypeShift) }
func (fc FrameControl) Subtype() uint8 { return uint8((fc & fcSubtypeMask) >> fcSubtypeShift) }
func (fc FrameControl) Has(bits FrameControl) bool { return fc&bits == bits }

// managementHeaderLen is frame-control(2) + duration(2) + addr1(6) +
// addr2(6) + addr3(6) + seq-control(2).
const managementHeaderLen = 24

// dataHeaderLen matches managementHeaderLen; a fourth address field is
// only present when both ToDS and FromDS are set (WDS), which this core
// never emits or expects.
const dataHeaderLen = 24

// LLC/SNAP prefix: DSAP, SSAP, Control, OUI (3 bytes), EtherType (2 bytes,
// big-endian) — IEEE 802.2 with a SNAP extension for EtherType pass-through.
const (
	llcDSAP    = 0xaa
	llcSSAP    = 0xaa
	llcControl = 0x03
)

var snapOUI = [3]byte{0x00, 0x00, 0x00}

const llcSnapLen = 8

// Header is the parsed fixed portion of an 802.11 frame.
type Header struct {
	FC       FrameControl
	Duration uint16
	Addr1    [6]byte
	Addr2    [6]byte
	Addr3    [6]byte
	SeqCtrl  uint16
}

// Bytes re-serializes the fixed header, used to rebuild the CCMP AAD on
// receive (the parsed Header, not the original raw bytes, is what the
// data path has in hand by the time it needs the AAD).
func (h Header) Bytes() []byte {
	out := make([]byte, managementHeaderLen)
	binary.LittleEndian.PutUint16(out[0:2], uint16(h.FC))
	binary.LittleEndian.PutUint16(out[2:4], h.Duration)
	copy(out[4:10], h.Addr1[:])
	copy(out[10:16], h.Addr2[:])
	copy(out[16:22], h.Addr3[:])
	binary.LittleEndian.PutUint16(out[22:24], h.SeqCtrl)
	return out
}

// Fragment returns the low 4 bits of the sequence-control field.
func (h Header) Fragment() uint8 { return uint8(h.SeqCtrl & 0x000f) }

// Sequence returns the 12-bit sequence number.
func (h Header) Sequence() uint16 { return h.SeqCtrl >> 4 }

var (
	ErrFrameTooShort  = errors.New("frame: shorter than fixed header for its subtype")
	ErrNotDataFrame   = errors.New("frame: not a data-type frame")
	ErrBadLLCHeader   = errors.New("frame: LLC/SNAP header malformed")
)

// EncodeManagement builds a management frame: fixed header (addr1=dst,
// addr2=src, addr3=bssid) followed by body verbatim — the caller has
// already built body (fixed fields + IEs) for the subtype.
func EncodeManagement(subtype uint8, src, dst, bssid [6]byte, seq uint16, body []byte) []byte {
	out := make([]byte, managementHeaderLen+len(body))
	fc := NewFrameControl(TypeManagement, subtype, 0)
	binary.LittleEndian.PutUint16(out[0:2], uint16(fc))
	// Duration left zero: the radio fills it in.
	copy(out[4:10], dst[:])
	copy(out[10:16], src[:])
	copy(out[16:22], bssid[:])
	binary.LittleEndian.PutUint16(out[22:24], seq<<4)
	copy(out[24:], body)
	return out
}

// EncodeData builds a data frame with the to-DS bit set: addr1=bssid
// (receiver), addr2=src (transmitter), addr3=dst (destination, or the
// broadcast address when dst is nil). protected only sets the Protected
// Frame bit: the body is always the cleartext LLC+SNAP+EtherType prefix
// followed by payload, so a CCMP-protected frame is assembled with
// EncodeDataHeader instead.
func EncodeData(src [6]byte, dst *[6]byte, bssid [6]byte, protocol uint16, payload []byte, protected bool, seq uint16) []byte {
	flags := FCToDS
	if protected {
		flags |= FCProtected
	}
	var destAddr [6]byte
	if dst != nil {
		destAddr = *dst
	} else {
		destAddr = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	}

	llcLen := llcSnapLen
	body := make([]byte, llcLen+len(payload))
	body[0] = llcDSAP
	body[1] = llcSSAP
	body[2] = llcControl
	copy(body[3:6], snapOUI[:])
	binary.BigEndian.PutUint16(body[6:8], protocol)
	copy(body[8:], payload)

	out := make([]byte, dataHeaderLen+len(body))
	fc := NewFrameControl(TypeData, SubtypeData, flags)
	binary.LittleEndian.PutUint16(out[0:2], uint16(fc))
	copy(out[4:10], bssid[:])
	copy(out[10:16], src[:])
	copy(out[16:22], destAddr[:])
	binary.LittleEndian.PutUint16(out[22:24], seq<<4)
	copy(out[24:], body)
	return out
}

// EncodeDataHeader builds just the fixed 24-byte data-frame header (no
// LLC/SNAP, no body) — used by callers that need to assemble a protected
// frame themselves around a CCMP-sealed body (header + CCMP header +
// ciphertext + MIC), since that body is not the LLC+SNAP+EtherType shape
// EncodeData otherwise produces.
func EncodeDataHeader(src [6]byte, dst *[6]byte, bssid [6]byte, protected bool, seq uint16) []byte {
	flags := FCToDS
	if protected {
		flags |= FCProtected
	}
	var destAddr [6]byte
	if dst != nil {
		destAddr = *dst
	} else {
		destAddr = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	}
	out := make([]byte, dataHeaderLen)
	fc := NewFrameControl(TypeData, SubtypeData, flags)
	binary.LittleEndian.PutUint16(out[0:2], uint16(fc))
	copy(out[4:10], bssid[:])
	copy(out[10:16], src[:])
	copy(out[16:22], destAddr[:])
	binary.LittleEndian.PutUint16(out[22:24], seq<<4)
	return out
}

// ParseFrame splits raw into its fixed Header and the remaining body
// slice (IEs for management frames; LLC+SNAP+payload for data frames).
func ParseFrame(raw []byte) (Header, []byte, error) {
	if len(raw) < managementHeaderLen {
		return Header{}, nil, ErrFrameTooShort
	}
	var h Header
	h.FC = FrameControl(binary.LittleEndian.Uint16(raw[0:2]))
	h.Duration = binary.LittleEndian.Uint16(raw[2:4])
	copy(h.Addr1[:], raw[4:10])
	copy(h.Addr2[:], raw[10:16])
	copy(h.Addr3[:], raw[16:22])
	h.SeqCtrl = binary.LittleEndian.Uint16(raw[22:24])
	return h, raw[24:], nil
}

// IterIEs parses the information-element region of a management frame's
// body (the part of the body past any subtype-fixed fields the caller has
// already stripped).
func IterIEs(body []byte) ([]elements.Raw, error) {
	return elements.Iter(body)
}

// CCMPAdditionalData builds the CCMP AAD from a data frame's fixed
// header: a copy of the first 24 bytes with the mutable Retry/PwrMgmt/
// MoreData bits of frame control masked to zero and the sequence-control
// field zeroed (this core never fragments a protected MSDU). The duration
// field and all three address fields are kept as they are.
func CCMPAdditionalData(header []byte) []byte {
	aad := append([]byte(nil), header[:managementHeaderLen]...)
	fc := FrameControl(binary.LittleEndian.Uint16(aad[0:2]))
	fc &^= FCRetry | FCPwrMgmt | FCMoreData
	binary.LittleEndian.PutUint16(aad[0:2], uint16(fc))
	aad[22], aad[23] = 0, 0
	return aad
}

// ParseLLCSNAP validates and strips the LLC+SNAP prefix from a data
// frame's body, returning the EtherType and the remaining payload.
func ParseLLCSNAP(body []byte) (protocol uint16, payload []byte, err error) {
	if len(body) < llcSnapLen {
		return 0, nil, ErrFrameTooShort
	}
	if body[0] != llcDSAP || body[1] != llcSSAP || body[2] != llcControl {
		return 0, nil, ErrBadLLCHeader
	}
	protocol = binary.BigEndian.Uint16(body[6:8])
	return protocol, body[8:], nil
}
