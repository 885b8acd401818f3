// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package elements_test

import (
	"bytes"
	"testing"

	. "go.fuchsia.dev/wlanstation/internal/elements"
)

// R2: encode_ie(list) then iter_ies yields the same list.
func TestIterRoundTrip(t *testing.T) {
	var body []byte
	body = append(body, EncodeSSID("roundtrip")...)
	body = append(body, EncodeRates(IdSupportedRates, []Rate{0x82, 0x84, 0x8b, 0x96})...)
	body = append(body, EncodeDSSSChannel(6)...)

	raws, err := Iter(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(raws))
	}
	if raws[0].ID != IdSSID || string(raws[0].Payload) != "roundtrip" {
		t.Fatalf("unexpected SSID element: %+v", raws[0])
	}
	if raws[1].ID != IdSupportedRates || !bytes.Equal(raws[1].Payload, []byte{0x82, 0x84, 0x8b, 0x96}) {
		t.Fatalf("unexpected rates element: %+v", raws[1])
	}
	if raws[2].ID != IdDSSSParamSet || raws[2].Payload[0] != 6 {
		t.Fatalf("unexpected DSSS element: %+v", raws[2])
	}
}

// B3: a TLV whose declared length runs past the buffer end is rejected
// without yielding a partial parse of that element.
func TestIterRejectsOverrunElement(t *testing.T) {
	body := []byte{IdSSID, 10, 'a', 'b', 'c'} // declares 10 bytes, only 3 present
	_, err := Iter(body)
	if err != ErrTruncatedElement {
		t.Fatalf("expected ErrTruncatedElement, got %v", err)
	}
}

func TestRateBasicAndSelector(t *testing.T) {
	r := Rate(0x82)
	if !r.IsBasic() || r.Value500kbps() != 2 {
		t.Fatalf("unexpected decode of basic rate: %+v", r)
	}
	sel := Rate(0xff)
	if !sel.IsHTSelector() {
		t.Fatal("expected HT selector sentinel to be recognised")
	}
}
