// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package stationcfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "go.fuchsia.dev/wlanstation/internal/stationcfg"
)

const sampleYAML = `
ssid: homenet
passphrase: correcthorsebatterystaple
local_addr: "02:00:00:00:00:01"
supported_rates: [0x82, 0x84, 0x8b, 0x96]
capabilities: 0x0411
max_channel: 11
auth_timeout_ms: 1500
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "station.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesFields(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.SSID != "homenet" || f.Passphrase != "correcthorsebatterystaple" {
		t.Fatalf("unexpected ssid/passphrase: %+v", f)
	}
}

func TestLoadRejectsMissingSSID(t *testing.T) {
	path := writeTemp(t, "passphrase: x\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing ssid")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/station.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPropertiesParsesLocalAddr(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	props, err := f.Properties()
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	want := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	if props.LocalAddr != want {
		t.Fatalf("LocalAddr = %x, want %x", props.LocalAddr, want)
	}
	if len(props.SupportedRates) != 4 {
		t.Fatalf("expected 4 supported rates, got %d", len(props.SupportedRates))
	}
}

func TestPropertiesRejectsMalformedAddr(t *testing.T) {
	path := writeTemp(t, "ssid: x\nlocal_addr: \"not-a-mac\"\n")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := f.Properties(); err == nil {
		t.Fatal("expected error for malformed local_addr")
	}
}

func TestLinkConfigAppliesOverridesAndDefaults(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := f.LinkConfig()
	if cfg.AuthTimeout != 1500*time.Millisecond {
		t.Fatalf("AuthTimeout = %v, want 1500ms", cfg.AuthTimeout)
	}
	if cfg.AssocTimeout == 0 {
		t.Fatal("AssocTimeout should fall back to the default, not zero")
	}
}
