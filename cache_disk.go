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
	"crypto/sha256"
	"encoding/hex"
	"log"

	"github.com/peterbourgon/diskv"
)

// diskCache is the on-disk tier: a flat key/value store backed by the
// filesystem, with diskv's read cache bounded by capacityBytes.
type diskCache struct {
	store *diskv.Diskv
}

// diskCacheTransform shards by the first bytes of the key, which is
// already a sha256 hex digest by the time diskv sees it (see
// diskCacheFilename), so no further hashing is needed here.
func diskCacheTransform(key string) []string {
	if len(key) < 4 {
		return []string{"short"}
	}
	return []string{key[0:2], key[2:4]}
}

func diskCacheFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func newDiskCache(path string, capacityBytes int64) (ResultCache, error) {
	if path == "" {
		return nil, ErrInternal.withMessage("disk cache path must not be empty")
	}
	store := diskv.New(diskv.Options{
		BasePath:     path,
		Transform:    diskCacheTransform,
		CacheSizeMax: uint64(capacityBytes),
	})
	return &diskCache{store: store}, nil
}

func (d *diskCache) Get(key string) ([]byte, bool) {
	raw, err := d.store.Read(diskCacheFilename(key))
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (d *diskCache) Set(key string, value []byte) {
	if err := d.store.Write(diskCacheFilename(key), value); err != nil {
		log.Printf("disk cache write failed: %v", err)
	}
}
