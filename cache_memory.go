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
	lru "github.com/hashicorp/golang-lru"
)

// memoryCache is the in-process LRU tier, capacity-bounded by entry count.
type memoryCache struct {
	lru *lru.Cache
}

func newMemoryCache(capacity int) (ResultCache, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	c, err := lru.New(capacity)
	if err != nil {
		return nil, ErrInternal.withMessage("error creating memory cache: " + err.Error())
	}
	return &memoryCache{lru: c}, nil
}

func (m *memoryCache) Get(key string) ([]byte, bool) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (m *memoryCache) Set(key string, value []byte) {
	m.lru.Add(key, value)
}
