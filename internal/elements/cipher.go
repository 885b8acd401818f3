// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package elements builds and parses IEEE 802.11 information elements: the
// (id, length, value) TLVs carried in management frame bodies. The RSN
// element receives the most attention since it drives the cipher/AKM
// negotiation in the connection state machine.
package elements

// Element IDs, IEEE Std 802.11-2016, Table 9-77.
const (
	IdSSID            uint8 = 0
	IdSupportedRates   uint8 = 1
	IdDSSSParamSet     uint8 = 3
	IdRSN              uint8 = 48
	IdExtendedRates    uint8 = 50
)

// DefaultCipherSuiteOUI is the IEEE 802.11 OUI, 00-0F-AC, used by every
// cipher and AKM suite this module advertises itself.
var DefaultCipherSuiteOUI = [3]byte{0x00, 0x0f, 0xac}

// Cipher suite types, IEEE Std 802.11-2016, Table 9-131.
const (
	CipherSuiteType_UseGroup                        uint8 = 0
	CipherSuiteType_WEP40                            uint8 = 1
	CipherSuiteType_TKIP                             uint8 = 2
	CipherSuiteType_CCMP128                          uint8 = 4
	CipherSuiteType_WEP104                           uint8 = 5
	CipherSuiteType_BIP_CMAC128                      uint8 = 6
	CipherSuiteType_GroupAddressedTrafficNotAllowed  uint8 = 7
	CipherSuiteType_GCMP128                          uint8 = 8
	CipherSuiteType_GCMP256                          uint8 = 9
	CipherSuiteType_CCMP256                          uint8 = 10
	CipherSuiteType_BIP_GMAC128                      uint8 = 11
	CipherSuiteType_BIP_GMAC256                      uint8 = 12
	CipherSuiteType_BIP_CMAC256                      uint8 = 13
)

// AKM suite types, IEEE Std 802.11-2016, Table 9-133.
const (
	AkmSuiteType_Reserved          uint8 = 0
	AkmSuiteType_8021X             uint8 = 1
	AkmSuiteType_PSK               uint8 = 2
	AkmSuiteType_FT_8021X          uint8 = 3
	AkmSuiteType_FT_PSK            uint8 = 4
	AkmSuiteType_8021X_SHA256      uint8 = 5
	AkmSuiteType_PSK_SHA256        uint8 = 6
	AkmSuiteType_TDLS              uint8 = 7
	AkmSuiteType_SAE               uint8 = 8
	AkmSuiteType_FT_SAE            uint8 = 9
	AkmSuiteType_FT_8021X_SHA384   uint8 = 13
)

// CipherSuite is a 4-byte OUI+type selector, e.g. 00-0F-AC:4 for CCMP.
type CipherSuite struct {
	OUI  [3]byte
	Type uint8
}

func (c CipherSuite) bytes() [4]byte {
	return [4]byte{c.OUI[0], c.OUI[1], c.OUI[2], c.Type}
}

// IsCCMP reports whether this selector names the CCMP-128 cipher under the
// default 00-0F-AC OUI — the only pairwise/group cipher this core accepts.
func (c CipherSuite) IsCCMP() bool {
	return c.OUI == DefaultCipherSuiteOUI && c.Type == CipherSuiteType_CCMP128
}

// AKMSuite is a 4-byte OUI+type selector, e.g. 00-0F-AC:2 for PSK.
type AKMSuite struct {
	OUI  [3]byte
	Type uint8
}

func (a AKMSuite) bytes() [4]byte {
	return [4]byte{a.OUI[0], a.OUI[1], a.OUI[2], a.Type}
}

// IsPSK reports whether this selector names PSK or PSK-SHA256 under the
// default OUI — the only AKMs this core accepts.
func (a AKMSuite) IsPSK() bool {
	if a.OUI != DefaultCipherSuiteOUI {
		return false
	}
	return a.Type == AkmSuiteType_PSK || a.Type == AkmSuiteType_PSK_SHA256
}

// PMKID is a 16-byte cached-PMK identifier.
type PMKID [16]byte
