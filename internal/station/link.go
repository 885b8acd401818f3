// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package station

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"go.fuchsia.dev/wlanstation/internal/bss"
	"go.fuchsia.dev/wlanstation/internal/driver"
	"go.fuchsia.dev/wlanstation/internal/elements"
)

// Properties are the caller's radio properties, deep-copied into the
// Link at construction so the core owns its own supported-rates array
// (spec §4.6).
type Properties struct {
	LocalAddr      [6]byte
	SupportedRates []elements.Rate
	Capabilities   uint16
	MaxChannel     uint8
}

// Link is the aggregate root bound to one radio (spec §3 Link, §4.6 C6).
type Link struct {
	id uuid.UUID

	mu    sync.Mutex // the link lock: state, active BSS, pause queue, flags, timer.
	scanMu sync.Mutex // serialises scan workers; lock order is scan -> link.

	state          State
	probeNextState *State // latched transition request while Probing.
	linkUp         bool   // last isTerminalUp result, tracked for edge-triggered logging.

	registry *bss.Registry

	seq uint32 // monotonically increasing; only the low 12 bits go on the wire.

	paused     bool
	pauseQueue []queuedPacket

	props  Properties
	drv    driver.Driver
	stack  driver.NetworkStack
	cfg    Config

	timer       *time.Timer
	timerQueued bool

	log *logrus.Entry

	refCount int32
}

// Config is the per-join credentials and tuning knobs spec §9's TODO
// calls for instead of the teacher's hard-coded test SSID/passphrase.
// Loaded at runtime by stationcfg; see DESIGN.md.
type Config struct {
	SSID           string
	Passphrase     string
	AuthTimeout    time.Duration
	AssocTimeout   time.Duration
	HandshakeTimeout time.Duration
	ScanDwell      time.Duration
	BSSExpiry      time.Duration

	// BackgroundScanPad is subtracted from the active BSS's beacon
	// interval to get each channel's background-scan dwell, leaving
	// margin to return before the next beacon is due (spec §4.3).
	BackgroundScanPad time.Duration
	// BackgroundScanInterChannelDelay is slept between channels during a
	// background scan, giving the data path breathing room between
	// dwells (spec §4.3).
	BackgroundScanInterChannelDelay time.Duration
}

// DefaultConfig returns the timer/dwell defaults spec §4.4 suggests
// ("e.g. 2s", "e.g. 5s") and §4.2 ("e.g. 10s" expiry).
func DefaultConfig() Config {
	return Config{
		AuthTimeout:      2 * time.Second,
		AssocTimeout:     2 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		ScanDwell:        30 * time.Millisecond,
		BSSExpiry:        10 * time.Second,

		BackgroundScanPad:               4 * time.Millisecond,
		BackgroundScanInterChannelDelay: 20 * time.Millisecond,
	}
}

type queuedPacket struct {
	src      [6]byte
	dst      *[6]byte
	protocol uint16
	payload  []byte
	forceTx  bool
	unencrypted bool
}

// NewLink constructs a link: state Uninitialised, refcount one, empty BSS
// list, properties deep-copied (spec §4.6).
func NewLink(props Properties, drv driver.Driver, stack driver.NetworkStack, cfg Config) *Link {
	l := &Link{
		id:       uuid.New(),
		state:    Uninitialised,
		registry: bss.NewRegistry(),
		props: Properties{
			LocalAddr:      props.LocalAddr,
			SupportedRates: append([]elements.Rate(nil), props.SupportedRates...),
			Capabilities:   props.Capabilities | capabilityESS,
			MaxChannel:     props.MaxChannel,
		},
		drv:      drv,
		stack:    stack,
		cfg:      cfg,
		refCount: 1,
		log:      logrus.WithField("station", "link"),
	}
	l.log = l.log.WithField("link_id", l.id.String())
	return l
}

const capabilityESS uint16 = 0x0001

// ID returns the link's correlation UUID, carried as link_id on every log
// line the link writes, scan logging included (spec's driver-facing log
// surface doesn't otherwise name a link).
func (l *Link) ID() uuid.UUID { return l.id }

// State returns the current state under the link lock.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// AddLink transitions Uninitialised -> Initialised.
func (l *Link) AddLink() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Uninitialised {
		return
	}
	if err := l.drv.SetState(context.Background(), driver.StateInitialised); err != nil {
		l.log.WithError(err).Warn("add-link: driver set state failed")
		return
	}
	l.setState(Initialised)
}

// RemoveLink tears the link down unconditionally: cancels the state
// timer, releases the remaining BSS entries (wiping keys), and forces the
// state back to Uninitialised (spec §4.4 "* -> remove-link ->
// Uninitialised", §4.6 destruction).
func (l *Link) RemoveLink(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs error
	l.cancelTimerLocked()

	l.registry.ClearActive()
	for _, bssid := range l.registry.BSSIDs() {
		e := l.registry.Lookup(bssid)
		if e == nil {
			continue
		}
		l.registry.Remove(bssid)
		e.WipeKeys()
	}

	if err := l.drv.SetState(ctx, driver.StateUninitialised); err != nil {
		errs = multierr.Append(errs, err)
	}
	l.setState(Uninitialised)
	return errs
}

// AddRef/Release implement the link's own reference count, independent
// of any single BSS entry's (spec §3 Link "a reference count").
func (l *Link) AddRef() { l.mu.Lock(); l.refCount++; l.mu.Unlock() }

func (l *Link) Release() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refCount--
	return l.refCount == 0
}
