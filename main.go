/*
 * SPDX-License-Identifier: AGPL-3.0-only
 *
 * Copyright (c) 2025 sycured
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, version 3.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	d "runtime/debug"
	"time"

	"github.com/bytedance/gopkg/util/gctuner"
)

var (
	aBind     = flag.String("a", ":8088", "Bind address, host:port")
	aVers     = flag.Bool("v", false, "Show version")
	aVersl    = flag.Bool("version", false, "Show version")
	aHelp     = flag.Bool("h", false, "Show help")
	aHelpl    = flag.Bool("help", false, "Show help")
	aCertFile = flag.String("certfile", "", "TLS certificate file path")
	aKeyFile  = flag.String("keyfile", "", "TLS private key file path")
	aLogLevel = flag.String("log-level", "info", "Access log level. E.g: info,warning,error")
	aMRelease = flag.Int("mrelease", 30, "OS memory release interval in seconds")
)

const usage = `imgforge %s (runtime %d CPUs)

An HTTP image-transformation gateway compatible with the imgproxy URL
dialect: signed directive paths, a sixteen-step transform pipeline,
watermarking, a tiered result cache, and request admission control.

Usage:
  imgforge -a :8088 [flags]

Flags:
`

func main() {
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, usage, Version, runtime.NumCPU())
		flag.PrintDefaults()
	}
	flag.Parse()

	if *aHelp || *aHelpl {
		flag.Usage()
		os.Exit(0)
	}
	if *aVers || *aVersl {
		fmt.Println(Version)
		os.Exit(0)
	}

	tuneGC()
	configureMemoryRelease(envInt("MRELEASE", *aMRelease))

	cfg, err := configFromEnv(*aBind, *aCertFile, *aKeyFile, *aLogLevel)
	if err != nil {
		exitWithError("configuration error: %s", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		exitWithError("startup error: %s", err)
	}

	debugf("imgforge listening on %s", cfg.Bind)
	Server(app)
}

// tuneGC sets the soft memory limit gctuner.Tuning enforces, based on the
// host/cgroup/unikernel memory limit scaled by GCTHRESHOLDCOEFF.
func tuneGC() {
	memoryLimit, err := getUnikernelMemory()
	if err != nil {
		memoryLimit, err = getMemoryLimit()
	}
	if err != nil || memoryLimit == 0 {
		log.Panicf("Failed to determine host memory limit")
	}

	coeff := envFloat("GCTHRESHOLDCOEFF", 0.7)
	gcThreshold := float64(memoryLimit) * coeff
	gctuner.Tuning(uint64(gcThreshold))
}

// configureMemoryRelease periodically returns freed heap memory to the OS.
func configureMemoryRelease(interval int) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	go func() {
		for range ticker.C {
			debugf("FreeOSMemory()")
			d.FreeOSMemory()
		}
	}()
}

func exitWithError(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
