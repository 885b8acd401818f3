// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stationcfg loads the per-join credentials and radio properties
// a station.Link needs from a YAML file (spec §9's TODO: "SSID and
// passphrase are presently hard-coded for bring-up testing; a real
// config surface is future work"). The teacher's own wlan/eapol code
// carried exactly that hard-coded test credential; this package is the
// config surface spec §9 asks for, without inventing a bespoke format —
// it follows the YAML-config pattern the rest of the retrieval pack uses
// for device/key configuration.
package stationcfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"go.fuchsia.dev/wlanstation/internal/elements"
	"go.fuchsia.dev/wlanstation/internal/station"
)

// File is the on-disk shape of a station config file.
type File struct {
	SSID           string   `yaml:"ssid"`
	Passphrase     string   `yaml:"passphrase"`
	LocalAddr      string   `yaml:"local_addr"`
	SupportedRates []uint8  `yaml:"supported_rates"`
	Capabilities   uint16   `yaml:"capabilities"`
	MaxChannel     uint8    `yaml:"max_channel"`
	AuthTimeoutMS  int      `yaml:"auth_timeout_ms"`
	AssocTimeoutMS int      `yaml:"assoc_timeout_ms"`
	HandshakeMS    int      `yaml:"handshake_timeout_ms"`
	ScanDwellMS    int      `yaml:"scan_dwell_ms"`
	BSSExpiryMS    int      `yaml:"bss_expiry_ms"`
}

// Load reads and parses a station config file at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stationcfg: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("stationcfg: parse %s: %w", path, err)
	}
	if f.SSID == "" {
		return nil, fmt.Errorf("stationcfg: %s: ssid is required", path)
	}
	return &f, nil
}

// LinkConfig converts the parsed file into a station.Config, filling in
// station.DefaultConfig's timer defaults for any zero-valued duration.
func (f *File) LinkConfig() station.Config {
	cfg := station.DefaultConfig()
	cfg.SSID = f.SSID
	cfg.Passphrase = f.Passphrase
	if f.AuthTimeoutMS > 0 {
		cfg.AuthTimeout = msDuration(f.AuthTimeoutMS)
	}
	if f.AssocTimeoutMS > 0 {
		cfg.AssocTimeout = msDuration(f.AssocTimeoutMS)
	}
	if f.HandshakeMS > 0 {
		cfg.HandshakeTimeout = msDuration(f.HandshakeMS)
	}
	if f.ScanDwellMS > 0 {
		cfg.ScanDwell = msDuration(f.ScanDwellMS)
	}
	if f.BSSExpiryMS > 0 {
		cfg.BSSExpiry = msDuration(f.BSSExpiryMS)
	}
	return cfg
}

// Properties converts the parsed file into station.Properties. LocalAddr
// must already be a valid "xx:xx:xx:xx:xx:xx" MAC address string.
func (f *File) Properties() (station.Properties, error) {
	addr, err := parseMAC(f.LocalAddr)
	if err != nil {
		return station.Properties{}, fmt.Errorf("stationcfg: local_addr: %w", err)
	}
	rates := make([]elements.Rate, len(f.SupportedRates))
	for i, r := range f.SupportedRates {
		rates[i] = elements.Rate(r)
	}
	return station.Properties{
		LocalAddr:      addr,
		SupportedRates: rates,
		Capabilities:   f.Capabilities,
		MaxChannel:     f.MaxChannel,
	}, nil
}

func parseMAC(s string) ([6]byte, error) {
	var addr [6]byte
	if len(s) != 17 {
		return addr, fmt.Errorf("expected xx:xx:xx:xx:xx:xx, got %q", s)
	}
	for i := 0; i < 6; i++ {
		var b byte
		if _, err := fmt.Sscanf(s[i*3:i*3+2], "%02x", &b); err != nil {
			return addr, fmt.Errorf("expected xx:xx:xx:xx:xx:xx, got %q", s)
		}
		addr[i] = b
	}
	return addr, nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
