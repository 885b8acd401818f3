// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package crypto derives the keys the four-way handshake needs: the PMK
// from a passphrase and SSID, the IEEE 802.11 PRF, and the PTK expansion
// from PMK + nonces + addresses. It holds no connection or frame state —
// every function is pure.
package crypto

import (
	"crypto/sha1"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// ErrPassphraseLength is returned when the passphrase is outside [8, 63]
// bytes, the range IEEE Std 802.11-2016 J.4 allows for PSK derivation.
var ErrPassphraseLength = errors.New("crypto: passphrase must be 8 to 63 bytes")

// ErrPassphraseCharacter is returned when the passphrase contains a byte
// outside the printable ASCII range 0x20-0x7E.
var ErrPassphraseCharacter = errors.New("crypto: passphrase contains a non-ASCII-printable byte")

const pskIterations = 4096
const pskLength = 32

// PSK derives the 256-bit PMK from a passphrase and SSID per IEEE Std
// 802.11-2016 J.4: PBKDF2-SHA1 with 4096 iterations. The passphrase must
// be 8 to 63 bytes of printable ASCII (0x20-0x7E); anything else is
// rejected rather than silently truncated or re-encoded, since a
// passphrase that round-trips incorrectly would derive the wrong PMK
// without any other signal that something went wrong.
func PSK(passPhrase, ssid string) ([]byte, error) {
	if len(passPhrase) < 8 || len(passPhrase) > 63 {
		return nil, ErrPassphraseLength
	}
	for i := 0; i < len(passPhrase); i++ {
		c := passPhrase[i]
		if c < 0x20 || c > 0x7e {
			return nil, ErrPassphraseCharacter
		}
	}
	return pbkdf2.Key([]byte(passPhrase), []byte(ssid), pskIterations, pskLength, sha1.New), nil
}
