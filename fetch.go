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
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "imgforge/" + Version

// fetchSource retrieves the source image over HTTP, enforcing maxBytes (0
// disables the cap) while streaming so an oversized response never has to
// be buffered in full before being rejected. The request is bound to ctx
// so an aborted client request cancels the in-flight fetch.
func fetchSource(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		recordSourceFetch("error", time.Since(start).Seconds())
		return nil, "", ErrUpstreamFetch.withMessage("error fetching source image: " + err.Error())
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := client.Do(req)
	if err != nil {
		recordSourceFetch("error", time.Since(start).Seconds())
		return nil, "", ErrUpstreamFetch.withMessage("error fetching source image: " + err.Error())
	}
	defer func(body io.ReadCloser) { _ = body.Close() }(res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		recordSourceFetch("error", time.Since(start).Seconds())
		return nil, "", ErrUpstreamFetch.withMessage(fmt.Sprintf("source server returned status %d", res.StatusCode))
	}

	contentType := res.Header.Get("Content-Type")

	var body []byte
	if maxBytes > 0 {
		limited := io.LimitReader(res.Body, maxBytes+1)
		body, err = io.ReadAll(limited)
		if err == nil && int64(len(body)) > maxBytes {
			recordSourceFetch("error", time.Since(start).Seconds())
			return nil, "", ErrSourceTooLarge.withMessage(fmt.Sprintf("source image exceeds the maximum allowed size of %d bytes", maxBytes))
		}
	} else {
		body, err = io.ReadAll(res.Body)
	}
	if err != nil {
		recordSourceFetch("error", time.Since(start).Seconds())
		return nil, "", ErrUpstreamFetch.withMessage("error reading source image body: " + err.Error())
	}

	if len(body) == 0 {
		recordSourceFetch("error", time.Since(start).Seconds())
		return nil, "", ErrEmptyBody
	}

	recordSourceFetch("success", time.Since(start).Seconds())
	return body, contentType, nil
}

// newSourceClient builds the HTTP client used for every source fetch, with
// a fixed per-request timeout sourced from the download_timeout config.
func newSourceClient(downloadTimeoutSec int) *http.Client {
	return &http.Client{Timeout: time.Duration(downloadTimeoutSec) * time.Second}
}
