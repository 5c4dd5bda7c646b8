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
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

const (
	ContentType     = "Content-Type"
	ContentTypeJSON = "application/json"
	headerXCache    = "X-Cache"
)

// statusController implements GET /status, the liveness probe.
func (a *App) statusController(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(ContentType, ContentTypeJSON)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// infoController implements GET /info/<path>: the same parse/authorize/
// fetch/admit steps as the image route, stopping short of the transform
// pipeline.
func (a *App) infoController(w http.ResponseWriter, r *http.Request) {
	fullPath := strings.TrimPrefix(r.URL.Path, "/info")
	width, height, format, err := a.imageInfo(r.Context(), fullPath)
	if err != nil {
		sendErrorResponse(w, err)
		return
	}

	body, _ := json.Marshal(struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}{width, height, format})

	w.Header().Set(ContentType, ContentTypeJSON)
	_, _ = w.Write(body)
}

// imageController implements GET /<path>: the full orchestration, serving
// binary image bytes with a Content-Type and X-Cache header on success.
func (a *App) imageController(w http.ResponseWriter, r *http.Request) {
	result, err := a.processImage(r.Context(), r.URL.Path)
	if err != nil {
		sendErrorResponse(w, err)
		return
	}

	w.Header().Set(ContentType, result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Body)))
	w.Header().Set(headerXCache, result.CacheStatus)
	_, _ = w.Write(result.Body)
}

// healthController exposes process-health introspection (uptime,
// goroutines, memory stats) at an internal path distinct from /status.
func (a *App) healthController(w http.ResponseWriter, _ *http.Request) {
	body, _ := json.Marshal(GetHealthStats())
	w.Header().Set(ContentType, ContentTypeJSON)
	_, _ = w.Write(body)
}
