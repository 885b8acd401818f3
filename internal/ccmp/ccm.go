// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ccmp implements the 802.11 CCMP data-frame encapsulation: AES-CCM
// (RFC 3610 with the 802.11 parameter set, M=8, L=2) over the MAC header's
// address/sequence fields as associated data, plus the CCMP header/MIC
// framing IEEE Std 802.11-2016 §11.4.3 and §12.5.3 describe.
//
// Spec §1 declares the CCMP primitive itself ("AES block cipher and CCM
// mode") out of scope, "assumed available" — no library in the retrieval
// pack implements CCM (it is absent from x/crypto and every retrieved
// repo), so this is the one place this module builds cryptographic
// primitives directly on crypto/aes rather than reaching for a
// third-party package. See DESIGN.md.
package ccmp

import (
	"crypto/aes"
	"crypto/subtle"
	"errors"
)

const (
	blockSize = 16
	micSize   = 8 // M, in bytes — CCMP-128's fixed MIC length.
	lSize     = 2 // L — the length-field size in CCM's nonce/counter formatting.
	nonceSize = blockSize - 1 - lSize
)

// ErrMICMismatch is returned by open when the computed MIC does not match
// the one carried in the frame — the frame is forged, corrupted, or was
// encrypted under a different key.
var ErrMICMismatch = errors.New("ccmp: MIC mismatch")

// seal performs generic CCM encryption: it returns ciphertext the same
// length as plaintext, followed by an M-byte MIC, computed over aad.
func seal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != nonceSize {
		return nil, errors.New("ccmp: bad nonce length")
	}

	tag := cbcMAC(block, nonce, aad, plaintext)

	out := make([]byte, len(plaintext)+micSize)
	ctrEncrypt(block, nonce, plaintext, out[:len(plaintext)])

	s0 := counterBlock(block, nonce, 0)
	for i := 0; i < micSize; i++ {
		out[len(plaintext)+i] = tag[i] ^ s0[i]
	}
	return out, nil
}

// open performs generic CCM decryption and verification. sealed is
// ciphertext followed by an M-byte MIC.
func open(key, nonce, aad, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != nonceSize {
		return nil, errors.New("ccmp: bad nonce length")
	}
	if len(sealed) < micSize {
		return nil, errors.New("ccmp: sealed input shorter than MIC")
	}

	ciphertext := sealed[:len(sealed)-micSize]
	gotTag := sealed[len(sealed)-micSize:]

	plaintext := make([]byte, len(ciphertext))
	ctrEncrypt(block, nonce, ciphertext, plaintext) // CTR is its own inverse.

	expectedTag := cbcMAC(block, nonce, aad, plaintext)
	s0 := counterBlock(block, nonce, 0)
	var mic [micSize]byte
	for i := 0; i < micSize; i++ {
		mic[i] = expectedTag[i] ^ s0[i]
	}
	if subtle.ConstantTimeCompare(mic[:], gotTag) != 1 {
		return nil, ErrMICMismatch
	}
	return plaintext, nil
}

// counterBlock builds CCM's A_i counter block: flag byte (L-1), nonce,
// counter i encoded big-endian in L bytes — then encrypts it under key.
func counterBlock(block interface{ Encrypt(dst, src []byte) }, nonce []byte, i uint16) [blockSize]byte {
	var a [blockSize]byte
	a[0] = byte(lSize - 1)
	copy(a[1:1+nonceSize], nonce)
	a[blockSize-2] = byte(i >> 8)
	a[blockSize-1] = byte(i)

	var s [blockSize]byte
	block.Encrypt(s[:], a[:])
	return s
}

// ctrEncrypt XORs in with the CCM keystream (counter blocks starting at 1)
// and writes the result to out. Used for both directions — CTR mode is its
// own inverse.
func ctrEncrypt(block interface{ Encrypt(dst, src []byte) }, nonce, in, out []byte) {
	counter := uint16(1)
	for off := 0; off < len(in); off += blockSize {
		s := counterBlock(block, nonce, counter)
		counter++
		n := len(in) - off
		if n > blockSize {
			n = blockSize
		}
		for i := 0; i < n; i++ {
			out[off+i] = in[off+i] ^ s[i]
		}
	}
}

// cbcMAC computes CCM's authentication value (RFC 3610 §2.2) over the B0
// block (built from the flags/nonce/payload-length), the length-prefixed,
// zero-padded AAD, and the zero-padded payload. It returns the full
// block-size tag; callers truncate to micSize and mask with S_0.
func cbcMAC(block interface{ Encrypt(dst, src []byte) }, nonce, aad, payload []byte) [blockSize]byte {
	var b0 [blockSize]byte
	flags := byte(0)
	if len(aad) > 0 {
		flags |= 0x40
	}
	flags |= byte((micSize-2)/2) << 3
	flags |= byte(lSize - 1)
	b0[0] = flags
	copy(b0[1:1+nonceSize], nonce)
	plen := uint16(len(payload))
	b0[blockSize-2] = byte(plen >> 8)
	b0[blockSize-1] = byte(plen)

	var x [blockSize]byte
	block.Encrypt(x[:], b0[:])

	if len(aad) > 0 {
		var lenField [2]byte
		lenField[0] = byte(len(aad) >> 8)
		lenField[1] = byte(len(aad))
		blob := append(append([]byte(nil), lenField[:]...), aad...)
		blob = padToBlock(blob)
		xorBlocksInto(block, &x, blob)
	}

	xorBlocksInto(block, &x, padToBlock(payload))
	return x
}

func padToBlock(b []byte) []byte {
	if len(b)%blockSize == 0 {
		return b
	}
	out := make([]byte, ((len(b)/blockSize)+1)*blockSize)
	copy(out, b)
	return out
}

func xorBlocksInto(block interface{ Encrypt(dst, src []byte) }, x *[blockSize]byte, data []byte) {
	for off := 0; off < len(data); off += blockSize {
		var tmp [blockSize]byte
		for i := 0; i < blockSize; i++ {
			tmp[i] = x[i] ^ data[off+i]
		}
		block.Encrypt(x[:], tmp[:])
	}
}
