// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

// Package diag deduplicates sponsorship diagnostics emitted by
// build-time consumers. A process holds one Deduplicator instance and
// passes it to every component that reports, so emission stays
// at-most-once per key without ambient global state.
package diag

import (
	"fmt"
	"sync"
	"time"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// DefaultGracePeriod is how long after install a missing or invalid
// manifest is reported as unknown instead of a warning, giving new
// users time to run their first sync.
const DefaultGracePeriod = 5 * 24 * time.Hour

// Key identifies a diagnostic emission slot.
type Key struct {
	Sponsorable string
	Product     string
	Project     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Sponsorable, k.Product, k.Project)
}

// Diagnostic is a single sponsorship status report.
type Diagnostic struct {
	Key     Key
	Status  skm.ManifestStatus
	Types   skm.SponsorTypes
	Message string
}

// Deduplicator retains at most one diagnostic per key for the lifetime
// of the process. The first writer for a key wins; later pushes for
// the same key are dropped.
type Deduplicator struct {
	// GracePeriod defaults to DefaultGracePeriod when zero.
	GracePeriod time.Duration

	mu    sync.Mutex
	items map[Key]Diagnostic

	// now is stubbed in tests.
	now func() time.Time
}

// New creates an empty deduplicator with the default grace period.
func New() *Deduplicator {
	return &Deduplicator{items: make(map[Key]Diagnostic)}
}

// Push records the diagnostic unless one is already retained for its
// key. It reports whether the diagnostic was retained.
func (d *Deduplicator) Push(diag Diagnostic) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.items == nil {
		d.items = make(map[Key]Diagnostic)
	}
	if _, exists := d.items[diag.Key]; exists {
		return false
	}
	d.items[diag.Key] = diag
	return true
}

// Peek returns the retained diagnostic for the key without removing it.
func (d *Deduplicator) Peek(key Key) (Diagnostic, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	diag, ok := d.items[key]
	return diag, ok
}

// Pop removes and returns the retained diagnostic for the key. A
// second surface re-reporting the same diagnostic calls Pop so the
// hand-off counts the emission exactly once.
func (d *Deduplicator) Pop(key Key) (Diagnostic, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	diag, ok := d.items[key]
	if ok {
		delete(d.items, key)
	}
	return diag, ok
}

// Classify adjusts a manifest status for the install grace window:
// when no valid manifest exists but the product was installed within
// the grace period, the status is reported as unknown so first-time
// users are not warned before they had a chance to sync.
func (d *Deduplicator) Classify(status skm.ManifestStatus, installedAt time.Time) skm.ManifestStatus {
	if status == skm.StatusValid {
		return status
	}
	grace := d.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}
	clock := d.now
	if clock == nil {
		clock = time.Now
	}
	if !installedAt.IsZero() && clock().Sub(installedAt) < grace {
		return skm.StatusUnknown
	}
	return status
}
