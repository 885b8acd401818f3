// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package crypto

import (
	"crypto/hmac"
	"crypto/sha1"
)

// PRF is the IEEE 802.11 pseudo-random function, IEEE Std 802.11-2016
// J.3.2: repeated HMAC-SHA1 over prefix || 0x00 || data || counter,
// concatenated and truncated to the requested number of bits.
func PRF(key []byte, prefix string, data []byte, bits int) []byte {
	iterations := (bits + 159) / 160
	out := make([]byte, 0, iterations*sha1.Size)
	for i := 0; i < iterations; i++ {
		h := hmac.New(sha1.New, key)
		h.Write([]byte(prefix))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{byte(i)})
		out = h.Sum(out)
	}
	return out[:bits/8]
}
