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
	"encoding/base64"
	"net/url"
	"testing"
)

func TestParsePathPlainSource(t *testing.T) {
	src := "https://example.com/photo.jpg"
	path := "/unsafe/resize:fit:200:150/g:north/plain/" + url.QueryEscape(src) + "@webp"

	parsed, err := parsePath(path)
	if err != nil {
		t.Fatalf("parsePath: %v", err)
	}
	if parsed.Signature != "unsafe" {
		t.Fatalf("expected signature 'unsafe', got %q", parsed.Signature)
	}
	if len(parsed.Directives) != 3 {
		t.Fatalf("expected 3 directives (resize, gravity, implicit format), got %d: %+v", len(parsed.Directives), parsed.Directives)
	}
	last := parsed.Directives[len(parsed.Directives)-1]
	if last.Name != "format" || len(last.Args) != 1 || last.Args[0] != "webp" {
		t.Fatalf("expected trailing implicit format:webp directive, got %+v", last)
	}

	decoded, err := parsed.Source.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != src {
		t.Fatalf("expected decoded source %q, got %q", src, decoded)
	}
}

func TestParsePathBase64Source(t *testing.T) {
	src := "https://example.com/photo.jpg"
	b64 := base64.RawURLEncoding.EncodeToString([]byte(src))
	path := "/unsafe/resize:fill:100:100/" + b64 + ".png"

	parsed, err := parsePath(path)
	if err != nil {
		t.Fatalf("parsePath: %v", err)
	}
	decoded, err := parsed.Source.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != src {
		t.Fatalf("expected round-tripped source %q, got %q", src, decoded)
	}

	found := false
	for _, d := range parsed.Directives {
		if d.Name == "format" && len(d.Args) == 1 && d.Args[0] == "png" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected implicit format:png directive lifted from .png suffix")
	}
}

func TestParsePathRoundTripBothEncodings(t *testing.T) {
	src := "https://example.com/a/b/c.jpg?q=1&x=2"

	plain := "/unsafe/plain/" + url.QueryEscape(src)
	parsedPlain, err := parsePath(plain)
	if err != nil {
		t.Fatalf("parsePath(plain): %v", err)
	}
	gotPlain, err := parsedPlain.Source.Decode()
	if err != nil {
		t.Fatalf("Decode(plain): %v", err)
	}
	if gotPlain != src {
		t.Fatalf("plain round-trip mismatch: got %q want %q", gotPlain, src)
	}

	b64 := "/unsafe/" + base64.RawURLEncoding.EncodeToString([]byte(src))
	parsedB64, err := parsePath(b64)
	if err != nil {
		t.Fatalf("parsePath(base64): %v", err)
	}
	gotB64, err := parsedB64.Source.Decode()
	if err != nil {
		t.Fatalf("Decode(base64): %v", err)
	}
	if gotB64 != src {
		t.Fatalf("base64 round-trip mismatch: got %q want %q", gotB64, src)
	}
}

func TestParsePathMissingSource(t *testing.T) {
	if _, err := parsePath("/unsafe/resize:fit:100:100"); err == nil {
		t.Fatal("expected an error when no source segment is present")
	}
}

func TestParsePathEmptyDirectiveName(t *testing.T) {
	if _, err := parsePath("/unsafe/:100:100/plain/" + url.QueryEscape("https://example.com/a.jpg")); err == nil {
		t.Fatal("expected an error for an empty directive name")
	}
}

func TestSplitTrailingExt(t *testing.T) {
	cases := []struct {
		in      string
		sep     byte
		wantRaw string
		wantExt string
	}{
		{"foo@webp", '@', "foo", "webp"},
		{"foo", '@', "foo", ""},
		{"dir/foo.png", '.', "dir/foo", "png"},
		{"foo@", '@', "foo@", ""},
	}
	for _, c := range cases {
		raw, ext := splitTrailingExt(c.in, c.sep)
		if raw != c.wantRaw || ext != c.wantExt {
			t.Fatalf("splitTrailingExt(%q, %q) = (%q, %q), want (%q, %q)", c.in, c.sep, raw, ext, c.wantRaw, c.wantExt)
		}
	}
}

func TestCanonicalPath(t *testing.T) {
	canon, ok := canonicalPath("/sig123/resize:fit:100:100/plain/aHR0cHM6Ly9hLmpwZw")
	if !ok {
		t.Fatal("expected canonicalPath to succeed")
	}
	if canon != "/resize:fit:100:100/plain/aHR0cHM6Ly9hLmpwZw" {
		t.Fatalf("unexpected canonical path: %q", canon)
	}

	if _, ok := canonicalPath("/sig123"); ok {
		t.Fatal("expected canonicalPath to fail with no segments after the signature")
	}
}
