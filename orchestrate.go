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

	"github.com/h2non/bimg"
)

// X-Cache header values.
const (
	cacheStatusHit  = "HIT"
	cacheStatusMiss = "MISS"
)

// imageResult is what processImage returns to its caller: the bytes to
// send, the content type, and whether the result came from cache.
type imageResult struct {
	Body        []byte
	ContentType string
	CacheStatus string
}

// processImage runs the image-serving orchestration: parse, authorize,
// cache lookup, source decode, preset expansion, option parsing, fetch,
// admission, render, cache insert. Rate limiting and bearer auth are
// applied by the middleware chain ahead of the handler that calls this.
// fullPath is the raw request path (including the leading slash), used
// both as the cache key and as the signature input.
func (a *App) processImage(ctx context.Context, fullPath string) (imageResult, error) {
	parsed, err := parsePath(fullPath)
	if err != nil {
		return imageResult{}, err
	}

	if err := authorizeSignature(a.cfg, parsed, fullPath); err != nil {
		return imageResult{}, err
	}

	if cached, ok := a.cache.Get(fullPath); ok {
		recordCacheOutcome("hit")
		return imageResult{
			Body:        cached,
			ContentType: a.contentTypeFromDirectives(parsed.Directives, cached),
			CacheStatus: cacheStatusHit,
		}, nil
	}
	recordCacheOutcome("miss")

	sourceURL, err := parsed.Source.Decode()
	if err != nil {
		return imageResult{}, err
	}

	directives, err := expandPresets(parsed.Directives, a.cfg)
	if err != nil {
		return imageResult{}, err
	}

	opts, err := parseAllOptions(directives)
	if err != nil {
		return imageResult{}, err
	}

	fetchMaxBytes := effectiveInt64Cap(a.cfg.MaxSrcFileSize, opts.MaxSrcFileSize, a.cfg.AllowSecurityOptions)
	body, contentType, err := fetchSource(ctx, a.client, sourceURL, fetchMaxBytes)
	if err != nil {
		return imageResult{}, err
	}

	if err := admitSource(a.cfg, body, contentType, opts); err != nil {
		return imageResult{}, err
	}

	result, err := a.renderImage(ctx, body, opts)
	if err != nil {
		return imageResult{}, err
	}

	a.cache.Set(fullPath, result.Body)
	result.CacheStatus = cacheStatusMiss
	return result, nil
}

// contentTypeFromDirectives reconstructs the Content-Type for a cache hit
// by re-parsing the request's directives to recover the output format
// (the stored payload is opaque bytes). Any parse failure falls back to
// application/octet-stream; a raw request is sniffed from the bytes
// themselves since no encode stage ever ran on them.
func (a *App) contentTypeFromDirectives(directives []Directive, body []byte) string {
	expanded, err := expandPresets(directives, a.cfg)
	if err != nil {
		return "application/octet-stream"
	}
	opts, err := parseAllOptions(expanded)
	if err != nil {
		return "application/octet-stream"
	}

	if opts.Raw {
		if mime := detectMimeFromBytes(body); mime != "" {
			return mime
		}
		return "application/octet-stream"
	}

	format := "jpeg"
	if opts.Format != nil {
		format = *opts.Format
	}
	return GetImageMimeType(ImageType(format))
}

// renderImage resolves a watermark source (if requested), acquires a
// scheduler permit, and runs the transform pipeline. The raw directive
// passes the fetched bytes through untouched and never takes a permit.
func (a *App) renderImage(ctx context.Context, body []byte, opts ParsedOptions) (imageResult, error) {
	if opts.Raw {
		contentType := detectMimeFromBytes(body)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return imageResult{Body: body, ContentType: contentType}, nil
	}

	var watermarkBytes []byte
	if opts.Watermark != nil {
		fetch := func(url string) ([]byte, string, error) {
			return fetchSource(ctx, a.client, url, a.cfg.MaxSrcFileSize)
		}
		bytes, err := a.watermarks.resolve(fetch, a.defaultWatermark, opts.WatermarkURL)
		if err != nil {
			return imageResult{}, err
		}
		watermarkBytes = bytes
	}

	if err := a.scheduler.Acquire(ctx); err != nil {
		return imageResult{}, ErrInternal.withMessage("scheduler: " + err.Error())
	}
	defer a.scheduler.Release()

	encoded, contentType, err := runPipeline(body, opts, watermarkBytes)
	if err != nil {
		return imageResult{}, err
	}

	return imageResult{Body: encoded, ContentType: contentType}, nil
}

// imageInfo implements the GET /info/<path> route: decode, admit, and
// report dimensions/format without running the transform pipeline.
func (a *App) imageInfo(ctx context.Context, fullPath string) (width, height int, format string, err error) {
	parsed, err := parsePath(fullPath)
	if err != nil {
		return 0, 0, "", err
	}

	if err := authorizeSignature(a.cfg, parsed, fullPath); err != nil {
		return 0, 0, "", err
	}

	sourceURL, err := parsed.Source.Decode()
	if err != nil {
		return 0, 0, "", err
	}

	directives, err := expandPresets(parsed.Directives, a.cfg)
	if err != nil {
		return 0, 0, "", err
	}

	opts, err := parseAllOptions(directives)
	if err != nil {
		return 0, 0, "", err
	}

	fetchMaxBytes := effectiveInt64Cap(a.cfg.MaxSrcFileSize, opts.MaxSrcFileSize, a.cfg.AllowSecurityOptions)
	body, contentType, err := fetchSource(ctx, a.client, sourceURL, fetchMaxBytes)
	if err != nil {
		return 0, 0, "", err
	}

	if err := admitSource(a.cfg, body, contentType, opts); err != nil {
		return 0, 0, "", err
	}

	size, err := imageSize(body)
	if err != nil {
		return 0, 0, "", ErrMissingSource
	}

	// Report the decoder-detected format rather than trusting the
	// upstream Content-Type header.
	format := bimg.DetermineImageTypeName(body)
	if format == "unknown" {
		format = ExtractImageTypeFromMime(contentType)
	}

	return size.Width, size.Height, format, nil
}
