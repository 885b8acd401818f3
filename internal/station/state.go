// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package station implements the connection state machine and its
// surrounding machinery (spec §1 "THE CORE"): the BSS registry glue, the
// scan engine, the seven-state connection state machine, and the
// transmit/receive data path, all bound together by the Link aggregate
// root (C4/C5/C6). These are kept in one package because spec §1 itself
// insists they are "tightly coupled ... and must be treated as one
// coherent subsystem" — splitting them into separate packages would force
// an artificial interface between parts that share one lock and one state
// variable.
package station

// State is one of the seven states of the connection state machine (spec
// §4.4), plus Uninitialised.
type State int

const (
	Uninitialised State = iota
	Initialised
	Probing
	Authenticating
	Associating
	Reassociating
	Associated
	Encrypted
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "Uninitialised"
	case Initialised:
		return "Initialised"
	case Probing:
		return "Probing"
	case Authenticating:
		return "Authenticating"
	case Associating:
		return "Associating"
	case Reassociating:
		return "Reassociating"
	case Associated:
		return "Associated"
	case Encrypted:
		return "Encrypted"
	default:
		return "Unknown"
	}
}

// isTerminalUp reports whether the network layer should consider this state
// "link up" for unencrypted/open networks or post-handshake encrypted
// ones. Associated-with-cipher-pending-handshake is deliberately not up.
func (s State) isTerminalUp(cipherPending bool) bool {
	if s == Associated && !cipherPending {
		return true
	}
	return s == Encrypted
}
