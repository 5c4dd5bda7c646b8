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
	"net/http/httptest"
	"testing"
)

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthorizeBearerMissingToken(t *testing.T) {
	app := newTestApp(t, func(cfg *Config) { cfg.Secret = "s3cr3t" })

	handler := app.authorizeBearer(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != ErrMissingBearer.HTTPCode() {
		t.Fatalf("expected %d, got %d", ErrMissingBearer.HTTPCode(), rec.Code)
	}
}

func TestAuthorizeBearerInvalidToken(t *testing.T) {
	app := newTestApp(t, func(cfg *Config) { cfg.Secret = "s3cr3t" })

	handler := app.authorizeBearer(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != ErrInvalidBearer.HTTPCode() {
		t.Fatalf("expected %d, got %d", ErrInvalidBearer.HTTPCode(), rec.Code)
	}
}

func TestAuthorizeBearerValidToken(t *testing.T) {
	app := newTestApp(t, func(cfg *Config) { cfg.Secret = "s3cr3t" })

	handler := app.authorizeBearer(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthorizeBearerDisabledWhenNoSecret(t *testing.T) {
	app := newTestApp(t, nil)

	handler := app.authorizeBearer(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when no bearer secret is configured, got %d", rec.Code)
	}
}

func TestRateLimitRejectsOverQuota(t *testing.T) {
	app := newTestApp(t, func(cfg *Config) { cfg.RateLimitPerMinute = 1 })

	handler := app.rateLimit(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "203.0.113.1:1234"

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	if rec2.Code != ErrRateLimited.HTTPCode() {
		t.Fatalf("expected %d on second request, got %d", ErrRateLimited.HTTPCode(), rec2.Code)
	}
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	app := newTestApp(t, nil)

	handler := app.rateLimit(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with no rate limiter configured, got %d", rec.Code)
	}
}

func TestDefaultHeadersSetsServerBanner(t *testing.T) {
	handler := defaultHeaders(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Server") == "" {
		t.Fatal("expected a Server header to be set")
	}
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	handler := metrics(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
