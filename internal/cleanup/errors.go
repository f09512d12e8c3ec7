// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import "errors"

var (
	// ErrRunInProgress is returned when another run holds the guard
	ErrRunInProgress = errors.New("a cleanup run is already in progress")

	// ErrUpstreamUnavailable is returned when Sonarr data could not be fetched.
	// Nothing has been changed when it is returned.
	ErrUpstreamUnavailable = errors.New("sonarr is unavailable")

	// ErrInvalidRequest is returned for requests that select nothing meaningful
	ErrInvalidRequest = errors.New("invalid cleanup request")
)
