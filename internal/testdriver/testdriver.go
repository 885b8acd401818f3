// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testdriver is an in-memory driver.Driver and driver.NetworkStack
// for exercising internal/station without real radio hardware: Send
// appends to a slice the test can inspect, SetChannel/SetState append
// every argument to their own slices, and Dispatch records every decapsulated payload
// handed to the network layer.
package testdriver

import (
	"context"
	"sync"

	"go.fuchsia.dev/wlanstation/internal/driver"
)

// Fake is a recording driver.Driver.
type Fake struct {
	mu sync.Mutex

	Sent      [][]byte
	Channels  []uint8
	States    []driver.State
	SendErr   error
	SendStatus driver.Status
}

func New() *Fake {
	return &Fake{SendStatus: driver.StatusOK}
}

func (f *Fake) Send(ctx context.Context, packets [][]byte) (driver.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return driver.StatusError, f.SendErr
	}
	f.Sent = append(f.Sent, packets...)
	return f.SendStatus, nil
}

func (f *Fake) SetChannel(ctx context.Context, channel uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channels = append(f.Channels, channel)
	return nil
}

func (f *Fake) SetState(ctx context.Context, state driver.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States = append(f.States, state)
	return nil
}

// LastState returns the most recently recorded state, or
// driver.StateUninitialised if none has been recorded yet.
func (f *Fake) LastState() driver.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.States) == 0 {
		return driver.StateUninitialised
	}
	return f.States[len(f.States)-1]
}

// LastSent returns the most recently sent frame, or nil if none.
func (f *Fake) LastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	return f.Sent[len(f.Sent)-1]
}

// FakeStack is a recording driver.NetworkStack.
type FakeStack struct {
	mu        sync.Mutex
	Delivered []Delivery
}

type Delivery struct {
	EtherType uint16
	Payload   []byte
}

func NewStack() *FakeStack {
	return &FakeStack{}
}

func (s *FakeStack) Dispatch(ethertype uint16, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Delivered = append(s.Delivered, Delivery{EtherType: ethertype, Payload: append([]byte(nil), payload...)})
	return true
}
