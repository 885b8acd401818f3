// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package keywrap implements the AES key wrap algorithm, RFC 3394. The
// four-way handshake uses it to wrap the GTK into the key-data field of
// EAPOL-Key message 3, encrypted under the KEK half of the PTK.
package keywrap

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
)

// ErrInvalidKeyLength is returned when the KEK is not 128, 192, or 256
// bits, the three lengths AES (and so RFC 3394) supports.
var ErrInvalidKeyLength = errors.New("keywrap: KEK must be 128, 192, or 256 bits")

// ErrInvalidDataLength is returned when the plaintext or ciphertext is not
// a whole number of 64-bit blocks, or is too short: Wrap needs at least two
// blocks of plaintext, Unwrap at least three blocks of ciphertext.
var ErrInvalidDataLength = errors.New("keywrap: data must be a multiple of 8 bytes and at least 16 bytes")

// ErrIntegrityCheckFailed is returned by Unwrap when the recovered
// integrity check value does not match the RFC 3394 default IV — almost
// always because the wrong KEK was used.
var ErrIntegrityCheckFailed = errors.New("keywrap: integrity check failed")

var defaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

func validKeyLength(kek []byte) bool {
	switch len(kek) {
	case 16, 24, 32:
		return true
	default:
		return false
	}
}

// Wrap encrypts data (a whole number of 64-bit blocks, n >= 2) under kek
// per RFC 3394 §2.2.1.
func Wrap(kek, data []byte) ([]byte, error) {
	if !validKeyLength(kek) {
		return nil, ErrInvalidKeyLength
	}
	if len(data) < 16 || len(data)%8 != 0 {
		return nil, ErrInvalidDataLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(data) / 8
	r := make([][8]byte, n+1) // r[0] unused; r[1..n] are the data blocks.
	for i := 0; i < n; i++ {
		copy(r[i+1][:], data[i*8:(i+1)*8])
	}

	a := defaultIV
	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[0:8], a[:])
			copy(buf[8:16], r[i][:])
			block.Encrypt(buf, buf)

			var msb [8]byte
			copy(msb[:], buf[0:8])
			t := uint64(n*j + i)
			xorCounter(&msb, t)
			a = msb
			copy(r[i][:], buf[8:16])
		}
	}

	out := make([]byte, 8+len(data))
	copy(out[0:8], a[:])
	for i := 1; i <= n; i++ {
		copy(out[i*8:(i+1)*8], r[i][:])
	}
	return out, nil
}

// Unwrap decrypts ciphertext produced by Wrap, verifying the recovered
// integrity check value equals the RFC 3394 default IV.
func Unwrap(kek, ciphertext []byte) ([]byte, error) {
	if !validKeyLength(kek) {
		return nil, ErrInvalidKeyLength
	}
	if len(ciphertext) < 24 || len(ciphertext)%8 != 0 {
		return nil, ErrInvalidDataLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(ciphertext)/8 - 1
	var a [8]byte
	copy(a[:], ciphertext[0:8])
	r := make([][8]byte, n+1)
	for i := 0; i < n; i++ {
		copy(r[i+1][:], ciphertext[8+i*8:8+(i+1)*8])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			msb := a
			t := uint64(n*j + i)
			xorCounter(&msb, t)

			copy(buf[0:8], msb[:])
			copy(buf[8:16], r[i][:])
			block.Decrypt(buf, buf)

			copy(a[:], buf[0:8])
			copy(r[i][:], buf[8:16])
		}
	}

	if a != defaultIV {
		return nil, ErrIntegrityCheckFailed
	}

	out := make([]byte, n*8)
	for i := 1; i <= n; i++ {
		copy(out[(i-1)*8:i*8], r[i][:])
	}
	return out, nil
}

// xorCounter XORs the 64-bit big-endian integer t into the low bytes of v,
// per the t ^ MSB(64, B) step of RFC 3394 §2.2.1/§2.2.2.
func xorCounter(v *[8]byte, t uint64) {
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], t)
	for i := range v {
		v[i] ^= tb[i]
	}
}
