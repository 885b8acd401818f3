// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package driver declares the external interfaces spec §6 calls "consumed
// collaborators": the radio driver's hardware control surface and the
// generic networking stack's packet allocator/dispatch. The station
// package holds a Driver and a NetworkStack and calls into them; the
// driver calls back into the station via the ReceivePath interface, which
// a concrete station implements.
package driver

import "context"

// State is the subset of the connection state machine's states the
// driver needs to know about, passed to SetState so a real radio can
// adjust filtering/power-save behavior (spec §6 "set_state(ctx, state,
// optional bss_state)").
type State int

const (
	StateUninitialised State = iota
	StateInitialised
	StateProbing
	StateAuthenticating
	StateAssociating
	StateReassociating
	StateAssociated
	StateEncrypted
)

// Status mirrors the driver-call outcomes spec §6/§7 name explicitly.
// ResourceInUse is handled specially by the data path: it is swallowed
// and reported to the caller as success after freeing the batch.
type Status int

const (
	StatusOK Status = iota
	StatusResourceInUse
	StatusError
)

// Properties describes the radio this station is bound to (spec §3
// Link "driver properties").
type Properties struct {
	LocalAddr      [6]byte
	MaxPhysAddr    uint64
	TxAlignment    uint32
	SupportedRates []uint8 // raw (basic<<7 | value500kbps) encoding, spec §4.4.
	MaxChannel     uint8
	Capabilities   uint16
	DeviceContext  interface{}
}

// Driver is the hardware control surface the station calls into (spec §6
// "Driver interface (consumed)").
type Driver interface {
	Send(ctx context.Context, packets [][]byte) (Status, error)
	SetChannel(ctx context.Context, channel uint8) error
	SetState(ctx context.Context, state State) error
}

// ReceivePath is what the driver calls back into the station with (spec
// §6 "process_received_packet", "remove_link").
type ReceivePath interface {
	ProcessReceivedPacket(packet []byte, rssi int8)
	RemoveLink()
}

// PacketBuffer is the networking stack's allocation unit (spec §6
// "Networking interface (consumed)"). This module passes plain []byte
// since Go's allocator and GC make the header/payload/footer split the
// teacher's C allocator needed unnecessary; NetworkStack still models the
// dispatch-by-EtherType boundary the spec calls out.
type PacketBuffer = []byte

// NetworkStack is the generic networking stack's dispatch surface.
type NetworkStack interface {
	// Dispatch delivers a decapsulated, decrypted data-frame payload for
	// ethertype to whichever protocol handler is registered, or reports
	// false if none is ("get_network_entry(ethertype) -> Option<entry>").
	Dispatch(ethertype uint16, payload []byte) (handled bool)
}
