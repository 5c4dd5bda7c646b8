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
	"bytes"
	"testing"
)

const cacheTestKey = "/unsafe/resize:fit:100:100/plain/https%3A%2F%2Fa.jpg"

var cacheTestValue = []byte("encoded bytes")

func assertRoundTrip(t *testing.T, c ResultCache) {
	t.Helper()
	c.Set(cacheTestKey, cacheTestValue)
	got, ok := c.Get(cacheTestKey)
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if !bytes.Equal(got, cacheTestValue) {
		t.Fatalf("round-trip mismatch: %q", got)
	}
}

func TestNoneCacheNeverStores(t *testing.T) {
	c := noneCache{}
	c.Set(cacheTestKey, cacheTestValue)
	if _, ok := c.Get(cacheTestKey); ok {
		t.Fatal("none cache must never report a hit")
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c, err := newMemoryCache(10)
	if err != nil {
		t.Fatalf("newMemoryCache: %v", err)
	}
	assertRoundTrip(t, c)
}

func TestMemoryCacheEvictsAtCapacity(t *testing.T) {
	c, err := newMemoryCache(2)
	if err != nil {
		t.Fatalf("newMemoryCache: %v", err)
	}
	c.Set("a", cacheTestValue)
	c.Set("b", cacheTestValue)
	c.Set("c", cacheTestValue)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected the oldest entry to be evicted at capacity")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected the newest entry to survive")
	}
}

func TestDiskCacheRoundTrip(t *testing.T) {
	c, err := newDiskCache(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("newDiskCache: %v", err)
	}
	assertRoundTrip(t, c)
}

func TestDiskCacheMissOnUnknownKey(t *testing.T) {
	c, err := newDiskCache(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("newDiskCache: %v", err)
	}
	if _, ok := c.Get("/never/inserted"); ok {
		t.Fatal("expected a miss for a key never inserted")
	}
}

func TestDiskCacheRejectsEmptyPath(t *testing.T) {
	if _, err := newDiskCache("", 1024); err == nil {
		t.Fatal("expected an error for an empty disk cache path")
	}
}

func TestHybridCachePromotesDiskHitsToMemory(t *testing.T) {
	mem, err := newMemoryCache(10)
	if err != nil {
		t.Fatalf("newMemoryCache: %v", err)
	}
	disk, err := newDiskCache(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("newDiskCache: %v", err)
	}

	disk.Set(cacheTestKey, cacheTestValue)

	h := hybridCache{memory: mem, disk: disk}
	if _, ok := h.Get(cacheTestKey); !ok {
		t.Fatal("expected the hybrid cache to fall through to disk")
	}
	if _, ok := mem.Get(cacheTestKey); !ok {
		t.Fatal("expected a disk hit to be promoted into the memory tier")
	}
}

func TestNewResultCacheSelectsBackend(t *testing.T) {
	cases := []struct {
		cfg     CacheConfig
		wantErr bool
	}{
		{CacheConfig{Kind: CacheNone}, false},
		{CacheConfig{Kind: CacheMemory, MemoryCapacity: 10}, false},
		{CacheConfig{Kind: CacheDisk, DiskPath: t.TempDir(), DiskCapacityByte: 1024}, false},
		{CacheConfig{Kind: CacheDisk}, true},
		{CacheConfig{Kind: CacheHybrid, MemoryCapacity: 10, DiskPath: t.TempDir(), DiskCapacityByte: 1024}, false},
	}
	for _, c := range cases {
		_, err := newResultCache(c.cfg)
		if (err != nil) != c.wantErr {
			t.Fatalf("newResultCache(%+v): err=%v, wantErr=%v", c.cfg, err, c.wantErr)
		}
	}
}
