// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo holds version details injected at link time:
//
//	go build -ldflags "-X github.com/autobrr/trimmarr/internal/buildinfo.Version=v1.0.0"
package buildinfo

import (
	"fmt"
	"net/http"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent identifies trimmarr to upstream services.
func UserAgent() string {
	return fmt.Sprintf("trimmarr/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// AttachUserAgentHeader sets the User-Agent header on req.
func AttachUserAgentHeader(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
}
