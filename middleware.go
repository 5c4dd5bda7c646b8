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
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/h2non/bimg"
	"github.com/rs/cors"
)

// Middleware composes the request-handling chain: the default response
// headers outermost, then metrics, then rate-limit admission, then CORS, then bearer auth, then the
// handler itself. Rate limiting runs before any parsing so an abusive
// client is rejected as cheaply as possible.
func (a *App) Middleware(fn http.HandlerFunc) http.Handler {
	next := http.Handler(fn)

	next = a.authorizeBearer(next)
	next = cors.Default().Handler(next)
	next = a.rateLimit(next)

	return defaultHeaders(metrics(next))
}

// rateLimit enforces the per-minute admission quota before any parsing
// happens, keyed by client IP. No-op when the server has no rate limiter
// configured.
func (a *App) rateLimit(next http.Handler) http.Handler {
	if a.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := a.rateLimiter.Allow(r.Context(), clientAddr(r))
		if err != nil {
			sendErrorResponse(w, ErrInternal.withMessage(err.Error()))
			return
		}
		if !allowed {
			sendErrorResponse(w, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorizeBearer checks the Authorization: Bearer <secret> header
// against cfg.Secret. No-op when no secret is configured.
func (a *App) authorizeBearer(next http.Handler) http.Handler {
	if a.cfg.Secret == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			sendErrorResponse(w, ErrMissingBearer)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != a.cfg.Secret {
			sendErrorResponse(w, ErrInvalidBearer)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// defaultHeaders sets the Server banner naming imgforge plus the
// underlying bimg/libvips versions.
func defaultHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", fmt.Sprintf("imgforge %s (bimg %s, vips %s)", Version, bimg.Version, bimg.VipsVersion))
		next.ServeHTTP(w, r)
	})
}

// metrics wraps next with the Prometheus request-level instrumentation.
func metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := NewMetricsResponseWriter(w)
		next.ServeHTTP(rw, r)
		lvs := []string{rw.Code, r.RequestURI, r.Method}
		reqCount.WithLabelValues(lvs...).Inc()
		reqDuration.WithLabelValues(lvs...).Observe(time.Since(start).Seconds())
		reqSizeBytes.WithLabelValues(lvs...).Observe(calcRequestSize(r))
		respSizeBytes.WithLabelValues(lvs...).Observe(float64(rw.Length))
	})
}
