// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package elements

import "errors"

// ErrTruncatedElement is returned by Iter when a TLV's declared length runs
// past the end of the buffer it was found in (spec §4.1).
var ErrTruncatedElement = errors.New("elements: TLV length runs past frame end")

// Raw is a single parsed (id, payload) pair. Payload aliases the backing
// buffer it was parsed from — callers that retain a Raw across a buffer
// reallocation must copy it first (spec §9, pointer-into-buffer note).
type Raw struct {
	ID      uint8
	Payload []byte
}

// Iter walks a sequence of (id, length, payload) TLVs, the information
// element region of a management frame body. It returns ErrTruncatedElement
// as soon as a TLV's declared length would read past the end of body,
// together with the TLVs parsed before it. The station's probe/beacon path
// drops the whole frame on that error, so a malformed frame produces no
// partial BSS update (spec §8 B3).
func Iter(body []byte) ([]Raw, error) {
	var out []Raw
	for len(body) > 0 {
		if len(body) < 2 {
			return out, ErrTruncatedElement
		}
		id := body[0]
		length := int(body[1])
		if length > len(body)-2 {
			return out, ErrTruncatedElement
		}
		out = append(out, Raw{ID: id, Payload: body[2 : 2+length]})
		body = body[2+length:]
	}
	return out, nil
}

// EncodeSSID builds an SSID element (0 to 32 bytes, no padding).
func EncodeSSID(ssid string) []byte {
	b := []byte(ssid)
	if len(b) > 32 {
		b = b[:32]
	}
	out := make([]byte, 0, len(b)+2)
	out = append(out, IdSSID, uint8(len(b)))
	return append(out, b...)
}

// Rate is a single entry of a (extended) supported-rates element: bit 7 set
// means the rate is in the BSS's basic-rate set; the low 7 bits are the
// rate in units of 500 kbit/s (spec §4.4 numeric semantics).
type Rate uint8

// IsBasic reports whether the basic-rate bit is set.
func (r Rate) IsBasic() bool { return r&0x80 != 0 }

// Value500kbps returns the rate value, masking off the basic-rate bit. The
// HT-PHY membership-selector sentinel comes back as 0x7F; see IsHTSelector.
func (r Rate) Value500kbps() uint8 { return uint8(r) & 0x7f }

// IsHTSelector reports whether this entry is the HT-PHY membership
// selector sentinel rather than a real rate, and so must be ignored during
// rate-set intersection (spec §4.4).
func (r Rate) IsHTSelector() bool { return r.Value500kbps() == 0x7f }

// EncodeRates builds a supported-rates element (at most 8 entries; callers
// with more must also emit an extended-rates element with IdExtendedRates).
func EncodeRates(id uint8, rates []Rate) []byte {
	out := make([]byte, 0, len(rates)+2)
	out = append(out, id, uint8(len(rates)))
	for _, r := range rates {
		out = append(out, uint8(r))
	}
	return out
}

// DecodeRates converts a raw rates TLV payload into a Rate slice.
func DecodeRates(payload []byte) []Rate {
	rates := make([]Rate, len(payload))
	for i, b := range payload {
		rates[i] = Rate(b)
	}
	return rates
}

// EncodeDSSSChannel builds a DSSS Parameter Set element naming the
// operating channel.
func EncodeDSSSChannel(channel uint8) []byte {
	return []byte{IdDSSSParamSet, 1, channel}
}
