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

import "testing"

func TestEffectiveInt64Cap(t *testing.T) {
	override := uint64(2048)

	if got := effectiveInt64Cap(1024, &override, true); got != 2048 {
		t.Fatalf("expected the client override to win when allowed, got %d", got)
	}
	if got := effectiveInt64Cap(1024, &override, false); got != 1024 {
		t.Fatalf("expected the server cap to win when overrides are disallowed, got %d", got)
	}
	if got := effectiveInt64Cap(1024, nil, true); got != 1024 {
		t.Fatalf("expected the server cap with no override present, got %d", got)
	}
}

func TestEffectiveFloatCap(t *testing.T) {
	override := float32(5.0)

	if got := effectiveFloatCap(2.0, &override, true); got != 5.0 {
		t.Fatalf("expected the client override to win when allowed, got %v", got)
	}
	if got := effectiveFloatCap(2.0, &override, false); got != 2.0 {
		t.Fatalf("expected the server cap to win when overrides are disallowed, got %v", got)
	}
}

func TestCheckMimeAllowed(t *testing.T) {
	cases := []struct {
		mime    string
		allowed []string
		want    bool
	}{
		{"image/png", nil, true},
		{"image/png", []string{"image/png", "image/jpeg"}, true},
		{"IMAGE/PNG", []string{"image/png"}, true},
		{"image/png", []string{" image/png "}, true},
		{"text/plain", []string{"image/png"}, false},
	}
	for _, c := range cases {
		if got := checkMimeAllowed(c.mime, c.allowed); got != c.want {
			t.Fatalf("checkMimeAllowed(%q, %v) = %v, want %v", c.mime, c.allowed, got, c.want)
		}
	}
}

func TestAdmitSourceFileSizeCap(t *testing.T) {
	cfg := &Config{MaxSrcFileSize: 4}
	body := []byte("12345")

	if err := admitSource(cfg, body, "image/png", defaultParsedOptions()); err != ErrSourceTooLarge {
		t.Fatalf("expected ErrSourceTooLarge, got %v", err)
	}
}

func TestAdmitSourceFileSizeOverride(t *testing.T) {
	cfg := &Config{MaxSrcFileSize: 4, AllowSecurityOptions: true}
	override := uint64(1024)
	opts := defaultParsedOptions()
	opts.MaxSrcFileSize = &override

	src := makeTestPNG(t, 2, 2, opaqueRed)
	if err := admitSource(cfg, src, "image/png", opts); err != nil {
		t.Fatalf("expected the client override to lift the size cap, got %v", err)
	}
}

func TestAdmitSourceMimeAllowlist(t *testing.T) {
	cfg := &Config{AllowedMimeTypes: []string{"image/jpeg"}}

	if err := admitSource(cfg, []byte("x"), "image/png", defaultParsedOptions()); err != ErrMimeNotAllowed {
		t.Fatalf("expected ErrMimeNotAllowed, got %v", err)
	}
}

func TestAdmitSourceUnsupportedMedia(t *testing.T) {
	cfg := &Config{}

	if err := admitSource(cfg, []byte("plain text"), "text/plain", defaultParsedOptions()); err != ErrUnsupportedMedia {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
}

func TestAdmitSourceResolutionCap(t *testing.T) {
	cfg := &Config{MaxSrcResolution: 0.000001} // 1 pixel
	src := makeTestPNG(t, 10, 10, opaqueRed)

	if err := admitSource(cfg, src, "image/png", defaultParsedOptions()); err != ErrResolutionTooLarge {
		t.Fatalf("expected ErrResolutionTooLarge, got %v", err)
	}
}

func TestAdmitSourceSniffsMissingContentType(t *testing.T) {
	cfg := &Config{AllowedMimeTypes: []string{"image/png"}}
	src := makeTestPNG(t, 2, 2, opaqueRed)

	if err := admitSource(cfg, src, "", defaultParsedOptions()); err != nil {
		t.Fatalf("expected a sniffed PNG to pass the allowlist, got %v", err)
	}
	if err := admitSource(cfg, src, "application/octet-stream", defaultParsedOptions()); err != nil {
		t.Fatalf("expected a generic content type to fall back to sniffing, got %v", err)
	}
}
