// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package elements_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"

	. "go.fuchsia.dev/wlanstation/internal/elements"
)

// vendorOUI stands in for a non-standard cipher/AKM registrant in these
// tests; real beacons almost always carry the 00-0F-AC OUI, but the codec
// must round-trip any 3-byte OUI it's handed.
var vendorOUI = [3]byte{0xaa, 0xbb, 0xcc}

var gcmp256Group = CipherSuite{OUI: DefaultCipherSuiteOUI, Type: CipherSuiteType_GCMP256}
var ccmp256Pairwise = CipherSuite{OUI: DefaultCipherSuiteOUI, Type: CipherSuiteType_CCMP256}
var vendorGCMP128Pairwise = CipherSuite{OUI: vendorOUI, Type: CipherSuiteType_GCMP128}
var wep40Pairwise = CipherSuite{OUI: DefaultCipherSuiteOUI, Type: CipherSuiteType_WEP40}
var bipCMAC256GroupMgmt = CipherSuite{OUI: DefaultCipherSuiteOUI, Type: CipherSuiteType_BIP_CMAC256}

var saeAKM = AKMSuite{OUI: vendorOUI, Type: AkmSuiteType_SAE}
var ftPSKAKM = AKMSuite{OUI: vendorOUI, Type: AkmSuiteType_FT_PSK}

var samplePMKID = PMKID{0xf0, 0xe1, 0xd2, 0xc3, 0xb4, 0xa5, 0x96, 0x87, 0x78, 0x69, 0x5a, 0x4b, 0x3c, 0x2d, 0x1e, 0x0f}

func capsOf(v uint16) *uint16 { return &v }

func TestParseRejectsNonRSNElementID(t *testing.T) {
	raw, _ := hex.DecodeString("40060100000fac02")
	if _, err := ParseRSN(raw); err == nil {
		t.Fatal("expected ParseRSN to reject a non-RSN element ID")
	}
}

func TestParseRejectsTooShortElement(t *testing.T) {
	raw, _ := hex.DecodeString("300601")
	if _, err := ParseRSN(raw); err == nil {
		t.Fatal("expected ParseRSN to reject a too-short element")
	}
}

func TestFullRSNEncodesAndParsesEveryField(t *testing.T) {
	rsne := NewEmptyRSN()
	rsne.Version = 1
	rsne.GroupData = &gcmp256Group
	rsne.PairwiseCiphers = []CipherSuite{ccmp256Pairwise, vendorGCMP128Pairwise, wep40Pairwise}
	rsne.AKMs = []AKMSuite{saeAKM, ftPSKAKM}
	rsne.Caps = capsOf(1234)
	rsne.PMKIDs = []PMKID{samplePMKID}
	rsne.GroupMgmt = &bipCMAC256GroupMgmt

	got := rsne.Bytes()
	want, _ := hex.DecodeString("30360100000fac090300000fac0aaabbcc08000fac010200aabbcc08aabbcc04d2040100f0e1d2c3b4a5968778695a4b3c2d1e0f000fac0d")
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %x, want %x", got, want)
	}

	parsed, err := ParseRSN(want)
	if err != nil {
		t.Fatalf("ParseRSN: %v", err)
	}
	if diff := cmp.Diff(rsne, parsed); diff != "" {
		t.Fatalf("ParseRSN did not reproduce the source RSN (-want +got):\n%s", diff)
	}
}

func TestRSNWithNoCapabilitiesTruncatesAfterAKMs(t *testing.T) {
	rsne := NewEmptyRSN()
	rsne.Version = 1
	rsne.GroupData = &gcmp256Group
	rsne.PairwiseCiphers = []CipherSuite{ccmp256Pairwise, vendorGCMP128Pairwise}
	rsne.AKMs = []AKMSuite{saeAKM, ftPSKAKM}

	got := rsne.Bytes()
	want, _ := hex.DecodeString("301a0100000fac090200000fac0aaabbcc080200aabbcc08aabbcc04")
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %x, want %x", got, want)
	}

	parsed, err := ParseRSN(want)
	if err != nil {
		t.Fatalf("ParseRSN: %v", err)
	}
	if diff := cmp.Diff(rsne, parsed); diff != "" {
		t.Fatalf("ParseRSN did not reproduce the source RSN (-want +got):\n%s", diff)
	}
}

// TestParseTruncatedPairwiseListStopsAtDeclaredCount exercises spec §4.4's
// "declared count would run past the end of raw" guard: the element
// declares two pairwise ciphers but the buffer only holds one.
func TestParseTruncatedPairwiseListStopsAtDeclaredCount(t *testing.T) {
	raw, _ := hex.DecodeString("300c0100000fac090200000fac0a")
	parsed, err := ParseRSN(raw)
	if err != nil {
		t.Fatalf("ParseRSN: %v", err)
	}
	want := NewEmptyRSN()
	want.Version = 1
	want.GroupData = &gcmp256Group
	if diff := cmp.Diff(want, parsed); diff != "" {
		t.Fatalf("truncated pairwise list not handled as expected (-want +got):\n%s", diff)
	}
}

func TestRSNWithZeroCapabilitiesRoundTrips(t *testing.T) {
	rsne := NewEmptyRSN()
	rsne.Version = 1
	rsne.GroupData = &vendorGCMP128Pairwise
	rsne.PairwiseCiphers = []CipherSuite{wep40Pairwise}
	rsne.AKMs = []AKMSuite{saeAKM}
	rsne.Caps = capsOf(0)

	got := rsne.Bytes()
	want, _ := hex.DecodeString("30140100aabbcc080100000fac010100aabbcc080000")
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %x, want %x", got, want)
	}

	parsed, err := ParseRSN(want)
	if err != nil {
		t.Fatalf("ParseRSN: %v", err)
	}
	if diff := cmp.Diff(rsne, parsed); diff != "" {
		t.Fatalf("ParseRSN did not reproduce the source RSN (-want +got):\n%s", diff)
	}
}

func TestRSNWithOnlyVersionRoundTrips(t *testing.T) {
	rsne := NewEmptyRSN()
	rsne.Version = 1

	got := rsne.Bytes()
	want, _ := hex.DecodeString("30020100")
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %x, want %x", got, want)
	}

	parsed, err := ParseRSN(want)
	if err != nil {
		t.Fatalf("ParseRSN: %v", err)
	}
	if diff := cmp.Diff(rsne, parsed); diff != "" {
		t.Fatalf("ParseRSN did not reproduce the source RSN (-want +got):\n%s", diff)
	}
}

// TestRSNWithEmptyPairwiseListTruncatesAfterGroupData checks that an empty
// (non-nil) PairwiseCiphers slice serializes the same as never setting it:
// both end the element right after GroupData.
func TestRSNWithEmptyPairwiseListTruncatesAfterGroupData(t *testing.T) {
	rsne := NewEmptyRSN()
	rsne.Version = 1
	rsne.GroupData = &ftPSKAKMAsCipher
	rsne.PairwiseCiphers = []CipherSuite{}
	rsne.AKMs = []AKMSuite{saeAKM}

	got := rsne.Bytes()
	want, _ := hex.DecodeString("30060100aabbcc04")
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %x, want %x", got, want)
	}

	parsedWant := NewEmptyRSN()
	parsedWant.Version = 1
	parsedWant.GroupData = &ftPSKAKMAsCipher
	parsed, err := ParseRSN(want)
	if err != nil {
		t.Fatalf("ParseRSN: %v", err)
	}
	if diff := cmp.Diff(parsedWant, parsed); diff != "" {
		t.Fatalf("ParseRSN did not reproduce the expected truncated RSN (-want +got):\n%s", diff)
	}
}

// ftPSKAKMAsCipher reuses the FT-PSK OUI/type pair as a (nonsensical but
// wire-valid) group cipher selector: the codec treats CipherSuite and
// AKMSuite identically as opaque OUI+type pairs, so this only needs to be
// four distinct bytes, not a real cipher.
var ftPSKAKMAsCipher = CipherSuite{OUI: vendorOUI, Type: AkmSuiteType_FT_PSK}

func TestDefaultStationRSNAdvertisesCCMPAndPSK(t *testing.T) {
	rsne := DefaultStationRSN()
	if !rsne.HasCCMP() {
		t.Fatal("default station RSN must advertise CCMP")
	}
	if !rsne.HasPSK() {
		t.Fatal("default station RSN must advertise PSK")
	}
	if got, want := len(rsne.Bytes()), 22; got != want {
		t.Fatalf("default station RSN wire length = %d, want %d", got, want)
	}
}
