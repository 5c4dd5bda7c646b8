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
	"context"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
)

// Scheduler gates native image-library calls behind a bounded number of
// permits (workers). An explicit channel semaphore rather than an
// HTTP-layer throttle, since raw requests must be able to bypass it
// entirely.
type Scheduler struct {
	permits chan struct{}
}

func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{permits: make(chan struct{}, workers)}
}

// Acquire blocks until a permit is free or ctx is done.
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Release() {
	<-s.permits
}

// RateLimiter wraps a GCRA limiter admitting at most perMinute requests
// per client key, checked at request admission before any parsing.
type RateLimiter struct {
	limiter *throttled.GCRARateLimiterCtx
}

func NewRateLimiter(perMinute int) (*RateLimiter, error) {
	store, err := memstore.New(65536)
	if err != nil {
		return nil, ErrInternal.withMessage("error creating rate limiter store: " + err.Error())
	}
	gcraStore := throttled.WrapStoreWithContext(store)

	// MaxBurst is on top of the first admitted request, so perMinute-1
	// admits exactly perMinute back-to-back requests before limiting.
	quota := throttled.RateQuota{MaxRate: throttled.PerMin(perMinute), MaxBurst: perMinute - 1}
	limiter, err := throttled.NewGCRARateLimiterCtx(gcraStore, quota)
	if err != nil {
		return nil, ErrInternal.withMessage("error creating rate limiter: " + err.Error())
	}

	return &RateLimiter{limiter: limiter}, nil
}

// Allow reports whether key (typically the client IP) may proceed.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	limited, _, err := r.limiter.RateLimitCtx(ctx, key, 1)
	if err != nil {
		return false, ErrInternal.withMessage("rate limiter error: " + err.Error())
	}
	return !limited, nil
}
