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
	"net/http"
	"os"
)

// App bundles every piece of process-wide state the HTTP handlers need:
// the immutable config, the result cache, the native-call scheduler, the
// optional admission rate limiter, the watermark cache, and the shared
// HTTP client used for source fetches.
type App struct {
	cfg *Config

	cache       ResultCache
	scheduler   *Scheduler
	rateLimiter *RateLimiter // nil when rate_limit_per_minute is unset

	watermarks       *watermarkCache
	defaultWatermark []byte // nil when watermark_path is unset

	client *http.Client
}

// newApp wires the cache, scheduler, rate limiter, watermark cache, and
// source HTTP client from a built Config.
func newApp(cfg *Config) (*App, error) {
	cache, err := newResultCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	scheduler := NewScheduler(cfg.Workers)

	var rateLimiter *RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		rateLimiter, err = NewRateLimiter(cfg.RateLimitPerMinute)
		if err != nil {
			return nil, err
		}
	}

	var defaultWatermark []byte
	if cfg.WatermarkPath != "" {
		defaultWatermark, err = os.ReadFile(cfg.WatermarkPath)
		if err != nil {
			return nil, ErrInternal.withMessage("error reading watermark_path: " + err.Error())
		}
	}

	return &App{
		cfg:              cfg,
		cache:            cache,
		scheduler:        scheduler,
		rateLimiter:      rateLimiter,
		watermarks:       newWatermarkCache(),
		defaultWatermark: defaultWatermark,
		client:           newSourceClient(cfg.DownloadTimeout),
	}, nil
}
