// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

// RunGuard allows at most one cleanup run at a time. Acquisition never blocks.
type RunGuard struct {
	sem chan struct{}
}

func NewRunGuard() *RunGuard {
	return &RunGuard{sem: make(chan struct{}, 1)}
}

// TryAcquire takes the guard and reports whether it succeeded.
func (g *RunGuard) TryAcquire() bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the guard. It must only be called after a successful TryAcquire.
func (g *RunGuard) Release() {
	select {
	case <-g.sem:
	default:
	}
}

// Running reports whether a run currently holds the guard.
func (g *RunGuard) Running() bool {
	return len(g.sem) > 0
}
