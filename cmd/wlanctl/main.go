// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command wlanctl drives a station.Link from the command line: start,
// scan, join, and leave (spec §6's "control surface spec does not
// otherwise name"). It uses a logging no-op driver by default since this
// module does not itself own a hardware backend; a real deployment links
// in a driver.Driver built against the target radio and passes it to
// station.NewLink the same way this command does.
package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"go.fuchsia.dev/wlanstation/internal/driver"
	"go.fuchsia.dev/wlanstation/internal/station"
	"go.fuchsia.dev/wlanstation/internal/stationcfg"
)

func main() {
	var (
		configPath = flag.StringP("config", "c", "", "path to a station config YAML file")
		channels   = flag.UintSlice("channel", []uint{1, 6, 11}, "channels to scan")
		bssid      = flag.String("bssid", "", "target bssid for join, as xx:xx:xx:xx:xx:xx")
		verbose    = flag.BoolP("verbose", "v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	args := flag.Args()
	if len(args) == 0 || *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: wlanctl --config FILE [--channel N]... <start|scan|join|leave>")
		os.Exit(2)
	}

	cfgFile, err := stationcfg.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	props, err := cfgFile.Properties()
	if err != nil {
		fatal(err)
	}

	drv := &loggingDriver{log: logrus.WithField("component", "driver")}
	stack := &loggingNetworkStack{log: logrus.WithField("component", "network")}
	link := station.NewLink(props, drv, stack, cfgFile.LinkConfig())

	ctx := context.Background()
	switch args[0] {
	case "start":
		link.AddLink()
		fmt.Println("link state:", link.State())
	case "scan":
		link.AddLink()
		chans := make([]uint8, len(*channels))
		for i, c := range *channels {
			chans[i] = uint8(c)
		}
		entry, err := link.Scan(ctx, station.ScanRequest{SSID: cfgFile.SSID, Channels: chans, Foreground: true})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("selected bssid=%x rssi=%d\n", entry.BSSID, entry.RSSI)
	case "join":
		link.AddLink()
		target, err := parseBSSID(*bssid)
		if err != nil {
			fatal(err)
		}
		if err := link.Join(ctx, target); err != nil {
			fatal(err)
		}
		fmt.Println("link state:", link.State())
	case "leave":
		link.Leave(ctx)
		fmt.Println("link state:", link.State())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		os.Exit(2)
	}
}

// parseBSSID parses the --bssid flag into the fixed-size address Join
// needs; net.ParseMAC accepts the same "xx:xx:xx:xx:xx:xx" form
// stationcfg uses for local_addr.
func parseBSSID(s string) ([6]byte, error) {
	var addr [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil {
		return addr, fmt.Errorf("--bssid: %w", err)
	}
	if len(hw) != 6 {
		return addr, fmt.Errorf("--bssid: expected a 6-byte MAC, got %d bytes", len(hw))
	}
	copy(addr[:], hw)
	return addr, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "wlanctl:", err)
	os.Exit(1)
}

// loggingDriver is a no-op driver.Driver that logs every call instead of
// touching real hardware.
type loggingDriver struct {
	log *logrus.Entry
}

func (d *loggingDriver) Send(ctx context.Context, packets [][]byte) (driver.Status, error) {
	d.log.WithField("count", len(packets)).Debug("send")
	return driver.StatusOK, nil
}

func (d *loggingDriver) SetChannel(ctx context.Context, channel uint8) error {
	d.log.WithField("channel", channel).Debug("set channel")
	return nil
}

func (d *loggingDriver) SetState(ctx context.Context, state driver.State) error {
	d.log.WithField("state", state).Debug("set state")
	return nil
}

type loggingNetworkStack struct {
	log *logrus.Entry
}

func (s *loggingNetworkStack) Dispatch(ethertype uint16, payload []byte) bool {
	s.log.WithField("ethertype", ethertype).WithField("bytes", len(payload)).Debug("dispatch")
	return true
}
