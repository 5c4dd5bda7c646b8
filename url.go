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
	"strings"
)

// SourceKind tags how the source URL segment of the path was encoded.
type SourceKind int

const (
	SourcePlain SourceKind = iota
	SourceBase64
)

// Directive is one name[:arg…] segment of the path.
type Directive struct {
	Name string
	Args []string
}

// SourceURL is the tagged variant carrying the still-encoded source reference.
type SourceURL struct {
	Kind SourceKind
	Raw  string // percent-encoded (Plain) or url-safe-base64-no-pad (Base64)
	Ext  string // extension lifted from @ext or .ext, without the dot/at
}

// ParsedPath is the structural decomposition of a request path, before
// signature verification or option parsing.
type ParsedPath struct {
	Signature  string
	Directives []Directive
	Source     SourceURL
}

// Decode resolves the source URL's raw encoding into a usable URL string.
func (s SourceURL) Decode() (string, error) {
	switch s.Kind {
	case SourcePlain:
		return url.QueryUnescape(s.Raw)
	case SourceBase64:
		b, err := base64.RawURLEncoding.DecodeString(s.Raw)
		if err != nil {
			return "", NewError("invalid base64 source url: "+err.Error(), 400)
		}
		return string(b), nil
	default:
		return "", NewError("unknown source url kind", 400)
	}
}

// parsePath splits a request path (without the leading slash) into its
// signature, directive prefix, and source tail. The tail begins at the
// first "plain" segment or the first segment with no ":" in it.
func parsePath(path string) (ParsedPath, error) {
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] == "" {
		return ParsedPath{}, NewError("invalid url format", 400)
	}

	signature := segments[0]
	rest := segments[1:]

	tailStart := -1
	for i, seg := range rest {
		if seg == "plain" || !strings.Contains(seg, ":") {
			tailStart = i
			break
		}
	}
	if tailStart == -1 {
		return ParsedPath{}, NewError("invalid url format: missing source", 400)
	}

	directives := make([]Directive, 0, tailStart)
	for _, seg := range rest[:tailStart] {
		parts := strings.Split(seg, ":")
		if parts[0] == "" {
			return ParsedPath{}, NewError("invalid directive: empty name", 400)
		}
		directives = append(directives, Directive{Name: parts[0], Args: parts[1:]})
	}

	tail := rest[tailStart:]
	var source SourceURL
	if tail[0] == "plain" {
		joined := strings.Join(tail[1:], "/")
		raw, ext := splitTrailingExt(joined, '@')
		source = SourceURL{Kind: SourcePlain, Raw: raw, Ext: ext}
	} else {
		joined := strings.Join(tail, "/")
		raw, ext := splitTrailingExt(joined, '.')
		source = SourceURL{Kind: SourceBase64, Raw: raw, Ext: ext}
	}

	if source.Ext != "" {
		directives = append(directives, Directive{Name: "format", Args: []string{source.Ext}})
	}

	return ParsedPath{Signature: signature, Directives: directives, Source: source}, nil
}

// splitTrailingExt splits off a trailing "<sep><ext>" suffix, e.g. "foo@webp"
// with sep='@' yields ("foo", "webp"). Only the final path segment is
// inspected so percent-encoded/base64 payloads containing the separator
// elsewhere are left untouched.
func splitTrailingExt(s string, sep byte) (string, string) {
	lastSlash := strings.LastIndexByte(s, '/')
	tail := s
	if lastSlash >= 0 {
		tail = s[lastSlash+1:]
	}

	idx := strings.LastIndexByte(tail, sep)
	if idx < 0 || idx == len(tail)-1 {
		return s, ""
	}

	ext := tail[idx+1:]
	newTail := tail[:idx]

	if lastSlash >= 0 {
		return s[:lastSlash+1] + newTail, ext
	}
	return newTail, ext
}

// canonicalPath is "/" plus everything after the signature segment, the
// input to the HMAC signature.
func canonicalPath(path string) (string, bool) {
	path = strings.TrimPrefix(path, "/")
	idx := strings.IndexByte(path, '/')
	if idx < 0 {
		return "", false
	}
	return "/" + path[idx+1:], true
}
