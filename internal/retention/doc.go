// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package retention decides which episodes of a tagged series are removed.
//
// The flow is ParseTags -> Evaluate -> BuildPlan -> Executor.Execute. Everything
// up to the executor is pure and safe to call repeatedly, which is what makes
// dry runs safe.
package retention
