/*
Copyright 2026 jr42.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lifetime implements overflow-safe lifetime arithmetic for RA
// options: an unsigned 32-bit seconds counter with an "infinite"
// sentinel, and "seconds since last update" deadline math that is
// recomputed from scratch on every tick rather than mutated in place
// (spec.md §9: "re-compute on each external event rather than mutating
// in place, so tests can replay events with a controlled clock").
package lifetime

import "time"

// Seconds is a lifetime value in seconds, as carried on the wire by PIO,
// RIO and RDNSS options.
type Seconds uint32

// Infinite is the sentinel lifetime value meaning "never expires"
// (spec.md §3: "value 0xFFFFFFFF means infinite").
const Infinite Seconds = 0xFFFFFFFF

// IsInfinite reports whether s is the infinite sentinel.
func (s Seconds) IsInfinite() bool {
	return s == Infinite
}

// Duration converts to a time.Duration; an infinite lifetime maps to
// the maximum representable duration.
func (s Seconds) Duration() time.Duration {
	if s.IsInfinite() {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(s) * time.Second
}

// FromDuration converts a duration to a saturating Seconds value.
func FromDuration(d time.Duration) Seconds {
	if d < 0 {
		return 0
	}
	secs := d / time.Second
	if secs >= time.Duration(Infinite) {
		return Infinite - 1 // avoid colliding with the sentinel
	}
	return Seconds(secs)
}

// Elapsed returns the whole seconds elapsed between lastUpdate and now,
// saturating at 0 if now precedes lastUpdate (a late or replayed timer
// fire must never produce a negative age).
func Elapsed(lastUpdate, now time.Time) Seconds {
	if now.Before(lastUpdate) {
		return 0
	}
	return FromDuration(now.Sub(lastUpdate))
}

// Remaining returns how many seconds remain before an entry with the
// given lifetime (recorded at lastUpdate) expires, as observed at now.
// An infinite lifetime always has infinite remaining time.
func Remaining(lifetime Seconds, lastUpdate, now time.Time) Seconds {
	if lifetime.IsInfinite() {
		return Infinite
	}
	elapsed := Elapsed(lastUpdate, now)
	if elapsed >= lifetime {
		return 0
	}
	return lifetime - elapsed
}

// IsExpired reports whether an entry recorded at lastUpdate with the
// given lifetime has crossed its expiry deadline as of now.
func IsExpired(lifetime Seconds, lastUpdate, now time.Time) bool {
	if lifetime.IsInfinite() {
		return false
	}
	return Remaining(lifetime, lastUpdate, now) == 0
}

// Deadline returns the absolute time at which an entry recorded at
// lastUpdate with the given lifetime will expire. Callers use this to
// compute the DPT's next expiry timer fire without storing a mutable
// countdown (spec.md §5: "Timers are monotonic: every entry stores
// lastUpdateTime; at each fire the next deadline is recomputed from
// scratch").
func Deadline(lifetime Seconds, lastUpdate time.Time) time.Time {
	if lifetime.IsInfinite() {
		return time.Time{}
	}
	return lastUpdate.Add(lifetime.Duration())
}

// Decrement computes the lifetime value an entry would report if
// `elapsed` seconds pass, saturating at zero and leaving an infinite
// lifetime untouched. Used when restoring persisted deprecating
// prefixes, to age their saved valid lifetime.
func Decrement(lifetime, elapsed Seconds) Seconds {
	if lifetime.IsInfinite() {
		return lifetime
	}
	if elapsed >= lifetime {
		return 0
	}
	return lifetime - elapsed
}
