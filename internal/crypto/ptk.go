// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package crypto

import "bytes"

// PTK holds the pairwise transient key material derived for one
// association: the key confirmation key (message-authentication over
// EAPOL-Key frames), the key encryption key (wraps the GTK in message 3),
// and the temporal key (installed into the CCMP cipher).
type PTK struct {
	KCK []byte
	KEK []byte
	TK  []byte
}

const (
	kckLen = 16
	kekLen = 16
	tkLen  = 16 // CCMP-128 temporal key.
)

// Min returns whichever of a, b sorts first lexicographically.
func Min(a, b []byte) []byte {
	if bytes.Compare(a, b) <= 0 {
		return a
	}
	return b
}

// Max returns whichever of a, b sorts last lexicographically.
func Max(a, b []byte) []byte {
	if bytes.Compare(a, b) >= 0 {
		return a
	}
	return b
}

// DeriveKeys expands the PMK into a PTK per IEEE Std 802.11-2016 12.7.1.2:
//
//	PTK = PRF-384(PMK, "Pairwise key expansion",
//	              Min(AA,SPA) || Max(AA,SPA) || Min(ANonce,SNonce) || Max(ANonce,SNonce))
//
// spa is the station's own address, aa the AP's (authenticator) address.
func DeriveKeys(pmk, spa, aa, aNonce, sNonce []byte) *PTK {
	data := make([]byte, 0, len(aa)+len(spa)+len(aNonce)+len(sNonce))
	data = append(data, Min(aa, spa)...)
	data = append(data, Max(aa, spa)...)
	data = append(data, Min(aNonce, sNonce)...)
	data = append(data, Max(aNonce, sNonce)...)

	bits := (kckLen + kekLen + tkLen) * 8
	expansion := PRF(pmk, "Pairwise key expansion", data, bits)

	return &PTK{
		KCK: expansion[0:kckLen],
		KEK: expansion[kckLen : kckLen+kekLen],
		TK:  expansion[kckLen+kekLen : kckLen+kekLen+tkLen],
	}
}
