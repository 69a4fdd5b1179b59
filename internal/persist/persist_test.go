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

package persist

import (
	"net/netip"
	"testing"
	"time"

	"github.com/jr42/brm/internal/ip6prefix"
)

type fakeSettings struct {
	data map[string][]byte
}

func newFakeSettings() *fakeSettings { return &fakeSettings{data: map[string][]byte{}} }

func (f *fakeSettings) Get(key string) ([]byte, bool) {
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeSettings) Set(key string, value []byte) error {
	f.data[key] = value
	return nil
}

func mustPrefix(s string) ip6prefix.Prefix {
	return ip6prefix.FromNetip(netip.MustParsePrefix(s))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	records := []Record{
		{Prefix: mustPrefix("fd00:1::/64"), ValidAtSave: 1800, SavedAt: now},
		{Prefix: mustPrefix("fd00:2::/64"), ValidAtSave: 900, SavedAt: now},
	}
	raw := Encode(now, records)
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(decoded))
	}
	if !decoded[0].Prefix.Equal(records[0].Prefix) || decoded[0].ValidAtSave != 1800 {
		t.Errorf("unexpected first record: %+v", decoded[0])
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	raw := []byte{0xFF, 0x00, 0x00}
	if _, err := Decode(raw); err != ErrUnsupportedVersion {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestStoreLoadDropsExpiredRecords(t *testing.T) {
	settings := newFakeSettings()
	store := NewStore(settings)
	saveTime := time.Unix(1_700_000_000, 0)

	store.Save(saveTime, []Record{
		{Prefix: mustPrefix("fd00:1::/64"), ValidAtSave: 100, SavedAt: saveTime},
		{Prefix: mustPrefix("fd00:2::/64"), ValidAtSave: 10000, SavedAt: saveTime},
	})

	loaded := store.Load(saveTime.Add(200 * time.Second))
	if len(loaded) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(loaded))
	}
	if !loaded[0].Prefix.Equal(mustPrefix("fd00:2::/64")) {
		t.Errorf("expected the long-lived record to survive, got %s", loaded[0].Prefix)
	}
}

func TestStoreLoadMissingKeyReturnsEmpty(t *testing.T) {
	store := NewStore(newFakeSettings())
	if loaded := store.Load(time.Now()); loaded != nil {
		t.Errorf("expected nil for a missing key, got %v", loaded)
	}
}
