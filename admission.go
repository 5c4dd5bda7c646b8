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
	"strings"

	"github.com/h2non/filetype"
)

// detectMimeFromBytes sniffs the MIME type from content when the upstream
// response omitted a Content-Type header.
func detectMimeFromBytes(body []byte) string {
	kind, err := filetype.Match(body)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// effectiveInt64Cap resolves a client-provided override against the
// server cap: the override only applies when allow_security_options lets
// the client loosen/tighten server policy, otherwise the server cap wins
// unconditionally. A zero cap means "no limit".
func effectiveInt64Cap(serverCap int64, clientOverride *uint64, allowOverride bool) int64 {
	if allowOverride && clientOverride != nil {
		return int64(*clientOverride)
	}
	return serverCap
}

func effectiveFloatCap(serverCap float64, clientOverride *float32, allowOverride bool) float64 {
	if allowOverride && clientOverride != nil {
		return float64(*clientOverride)
	}
	return serverCap
}

// checkMimeAllowed reports whether mime is permitted, given a possibly
// empty allowlist (empty means "allow everything").
func checkMimeAllowed(mime string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), mime) {
			return true
		}
	}
	return false
}

// admitSource runs the admission checks against an already-fetched source
// image: file size, MIME allowlist, and resolution cap (decoded
// header-only, not the full pixel buffer). Each cap may be overridden by
// the request's own max_src_file_size/max_src_resolution directives only
// when the server has allow_security_options enabled.
func admitSource(cfg *Config, body []byte, contentType string, opts ParsedOptions) error {
	maxFileSize := effectiveInt64Cap(cfg.MaxSrcFileSize, opts.MaxSrcFileSize, cfg.AllowSecurityOptions)
	if maxFileSize > 0 && int64(len(body)) > maxFileSize {
		return ErrSourceTooLarge
	}

	mime := contentType
	if mime == "" || mime == "application/octet-stream" {
		mime = detectMimeFromBytes(body)
	}
	if !checkMimeAllowed(mime, cfg.AllowedMimeTypes) {
		return ErrMimeNotAllowed
	}
	if mime != "" && !IsImageMimeTypeSupported(mime) {
		return ErrUnsupportedMedia
	}

	maxResolution := effectiveFloatCap(cfg.MaxSrcResolution, opts.MaxSrcResolution, cfg.AllowSecurityOptions)
	if maxResolution > 0 {
		size, err := imageSize(body)
		if err != nil {
			return ErrMissingSource
		}
		megapixels := float64(size.Width*size.Height) / 1_000_000.0
		if megapixels > maxResolution {
			return ErrResolutionTooLarge
		}
	}

	return nil
}
