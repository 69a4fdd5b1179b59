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

// Package persist saves the on-link prefixes BRM has advertised so they
// can be deprecated correctly across a reboot (spec.md §4.4, wire
// layout spec.md §6 "Persistence layout"). It is grounded on no single
// teacher file directly (the teacher has no persistence layer of its
// own) but follows the teacher's general style of a small, dependency-
// free encode/decode pair over a platform-supplied key/value store,
// using encoding/binary per spec.md §6's explicit fixed-width wire
// layout — a case where the wire format itself, not a missing library,
// is why this is stdlib-only (no third-party binary codec in the
// corpus models this record shape more directly than encoding/binary).
package persist

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"time"

	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/lifetime"
)

// Key is the Settings key BRM's deprecating on-link prefixes are stored
// under (spec.md §6: `"br.deprecatingPrefixes"`).
const Key = "br.deprecatingPrefixes"

const wireVersion = 1

// recordSize is 16B prefix + 1B length + 4B validAtSave + 4B savedAtUnixSec.
const recordSize = 16 + 1 + 4 + 4

// ErrUnsupportedVersion is returned when decoding a record array whose
// leading version tag this build does not understand.
var ErrUnsupportedVersion = errors.New("persist: unsupported record version")

// Record is one persisted deprecating on-link prefix.
type Record struct {
	Prefix      ip6prefix.Prefix
	ValidAtSave lifetime.Seconds
	SavedAt     time.Time
}

// Settings is the platform-facing key/value read/write hook (spec.md
// §6 "Settings read/write"). Get reports (nil, false) for an absent
// key; Set failures are handled per spec.md §7 ("Persistence write
// failure: discard; BRM retries on next deprecation event").
type Settings interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
}

// Store wraps a Settings backend with BRM's versioned record codec.
type Store struct {
	s Settings
}

// NewStore wraps s.
func NewStore(s Settings) *Store {
	return &Store{s: s}
}

// Save writes records, discarding any failure per spec.md §7.
func (st *Store) Save(now time.Time, records []Record) {
	_ = st.s.Set(Key, Encode(now, records))
}

// Load reads and decodes records, dropping any whose remaining valid
// lifetime is ≤0 as of now (spec.md §4.4: "entries whose remaining
// valid lifetime is ≤0 are dropped"). A missing key or a decode error
// yields an empty, non-fatal result.
func (st *Store) Load(now time.Time) []Record {
	raw, ok := st.s.Get(Key)
	if !ok {
		return nil
	}
	records, err := Decode(raw)
	if err != nil {
		return nil
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		elapsed := lifetime.Elapsed(r.SavedAt, now)
		if lifetime.Decrement(r.ValidAtSave, elapsed) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Encode serializes records into the versioned wire layout.
func Encode(now time.Time, records []Record) []byte {
	buf := make([]byte, 0, 3+len(records)*recordSize)
	buf = append(buf, wireVersion)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(records)))
	for _, r := range records {
		b16 := r.Prefix.Addr.As16()
		buf = append(buf, b16[:]...)
		buf = append(buf, r.Prefix.Length)
		buf = binary.BigEndian.AppendUint32(buf, uint32(r.ValidAtSave))
		// Unix seconds, not milliseconds: the field is 4 bytes wide
		// (spec.md §6), and a millisecond timestamp for any date past
		// 1970 overflows uint32 long before a seconds one does (good
		// until 2106).
		buf = binary.BigEndian.AppendUint32(buf, uint32(r.SavedAt.Unix()))
	}
	return buf
}

// Decode parses the versioned wire layout produced by Encode.
func Decode(raw []byte) ([]Record, error) {
	if len(raw) < 3 {
		return nil, errors.New("persist: truncated header")
	}
	if raw[0] != wireVersion {
		return nil, ErrUnsupportedVersion
	}
	count := binary.BigEndian.Uint16(raw[1:3])
	body := raw[3:]
	if len(body) < int(count)*recordSize {
		return nil, errors.New("persist: truncated record array")
	}
	out := make([]Record, 0, count)
	for i := 0; i < int(count); i++ {
		rec := body[i*recordSize : (i+1)*recordSize]
		var b16 [16]byte
		copy(b16[:], rec[0:16])
		length := rec[16]
		validAtSave := lifetime.Seconds(binary.BigEndian.Uint32(rec[17:21]))
		savedAtUnixSec := binary.BigEndian.Uint32(rec[21:25])
		out = append(out, Record{
			Prefix:      ip6prefix.Prefix{Addr: netip.AddrFrom16(b16), Length: length},
			ValidAtSave: validAtSave,
			SavedAt:     time.Unix(int64(savedAtUnixSec), 0),
		})
	}
	return out, nil
}
