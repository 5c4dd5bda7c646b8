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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

const unsafeSignature = "unsafe"

// signPath computes the URL-safe-base64 (no padding) HMAC-SHA256
// signature over salt followed by canonicalPath.
func signPath(key, salt []byte, canonicalPath string) string {
	h := hmac.New(sha256.New, key)
	h.Write(salt)
	h.Write([]byte(canonicalPath))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature reports whether presented is a valid signature for
// canonicalPath, using constant-time comparison.
func verifySignature(key, salt []byte, presented, canonicalPath string) bool {
	decoded, err := base64.RawURLEncoding.DecodeString(presented)
	if err != nil {
		return false
	}

	expected := hmac.New(sha256.New, key)
	expected.Write(salt)
	expected.Write([]byte(canonicalPath))

	return hmac.Equal(decoded, expected.Sum(nil))
}

// authorizeSignature applies the "unsafe" sentinel bypass and otherwise
// verifies the HMAC signature, translating failures into client errors.
func authorizeSignature(cfg *Config, parsed ParsedPath, fullPath string) error {
	if parsed.Signature == unsafeSignature {
		if !cfg.AllowUnsigned {
			return ErrUnsignedNotAllowed
		}
		return nil
	}

	canon, ok := canonicalPath(fullPath)
	if !ok {
		return ErrInvalidURL
	}

	if !verifySignature(cfg.Key, cfg.Salt, parsed.Signature, canon) {
		return ErrInvalidSignature
	}

	return nil
}
