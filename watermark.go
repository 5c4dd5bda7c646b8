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
	"math"
	"sync"

	"github.com/h2non/bimg"
)

// applyWatermark resizes the watermark image to a quarter of the main
// image's width, applies opacity, positions it, and composites it over
// the main image, using bimg's composite-and-resize primitives.
func applyWatermark(mainBuf, watermarkBuf []byte, opts Watermark, algorithm string) ([]byte, error) {
	mainSize, err := imageSize(mainBuf)
	if err != nil {
		return nil, err
	}
	wmSize, err := imageSize(watermarkBuf)
	if err != nil {
		return nil, err
	}

	factor := (float64(mainSize.Width) / 4.0) / float64(wmSize.Width)
	resizedWatermark, err := runBimg(watermarkBuf, bimg.Options{
		Width:        int(math.Round(float64(wmSize.Width) * factor)),
		Height:       int(math.Round(float64(wmSize.Height) * factor)),
		Force:        true,
		Interpolator: resizeInterpolator(algorithm),
	}, "failed to resize watermark")
	if err != nil {
		return nil, err
	}

	rwSize, err := imageSize(resizedWatermark)
	if err != nil {
		return nil, err
	}

	left, top := calculateWatermarkPosition(mainSize.Width, mainSize.Height, rwSize.Width, rwSize.Height, opts.Position)

	out, err := bimg.NewImage(mainBuf).Process(bimg.Options{
		WatermarkImage: bimg.WatermarkImage{
			Left:    left,
			Top:     top,
			Buf:     resizedWatermark,
			Opacity: opts.Opacity,
		},
	})
	if err != nil {
		return nil, ErrProcessing.withMessage("failed to composite watermark: " + err.Error())
	}
	return out, nil
}

// calculateWatermarkPosition anchors the watermark with a margin of 5% of
// the shorter main-image side, with "center" as the fallback for any
// unrecognized position name.
func calculateWatermarkPosition(mainW, mainH, wmW, wmH int, position string) (int, int) {
	shorter := mainW
	if mainH < shorter {
		shorter = mainH
	}
	margin := int(math.Round(float64(shorter) * 0.05))

	switch position {
	case "north":
		return (mainW - wmW) / 2, margin
	case "south":
		return (mainW - wmW) / 2, mainH - wmH - margin
	case "east":
		return mainW - wmW - margin, (mainH - wmH) / 2
	case "west":
		return margin, (mainH - wmH) / 2
	case "north_west":
		return margin, margin
	case "north_east":
		return mainW - wmW - margin, margin
	case "south_west":
		return margin, mainH - wmH - margin
	case "south_east":
		return mainW - wmW - margin, mainH - wmH - margin
	default:
		return (mainW - wmW) / 2, (mainH - wmH) / 2
	}
}

// watermarkCache lazily fetches and caches watermark source bytes keyed
// by URL, so a watermark_url directive hit repeatedly across requests
// only triggers one fetch. Population is single-flight per entry: the
// sync.Once makes a second caller for the same URL block on the first
// fetch instead of duplicating it.
type watermarkCache struct {
	mu    sync.Mutex
	byURL map[string]*watermarkEntry
}

type watermarkEntry struct {
	once  sync.Once
	bytes []byte
	err   error
}

func newWatermarkCache() *watermarkCache {
	return &watermarkCache{byURL: make(map[string]*watermarkEntry)}
}

// resolve returns the configured default watermark bytes, or fetches and
// caches the watermark referenced by watermark_url when present. fetch is
// the source fetcher's entry point, injected so this stays independent of
// the HTTP client construction. A failed fetch is not cached: the entry
// is dropped so a later request retries.
func (c *watermarkCache) resolve(fetch func(url string) ([]byte, string, error), defaultBytes []byte, watermarkURL *string) ([]byte, error) {
	if watermarkURL == nil || *watermarkURL == "" {
		return defaultBytes, nil
	}
	url := *watermarkURL

	c.mu.Lock()
	entry, ok := c.byURL[url]
	if !ok {
		entry = &watermarkEntry{}
		c.byURL[url] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.bytes, _, entry.err = fetch(url)
	})

	if entry.err != nil {
		c.mu.Lock()
		if c.byURL[url] == entry {
			delete(c.byURL, url)
		}
		c.mu.Unlock()
		return nil, entry.err
	}
	return entry.bytes, nil
}
