// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import "errors"

var (
	// ErrConfiguration is returned when a required setting is missing or invalid
	ErrConfiguration = errors.New("invalid configuration")

	// ErrConfigFileAccess is returned when there's an error accessing the configuration file
	ErrConfigFileAccess = errors.New("error accessing configuration file")
)
