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
	"time"

	"github.com/h2non/bimg"
)

// runPipeline applies the ordered transform stages to raw image bytes and
// returns the encoded output plus its content type. Stage order: DPR
// parameter scaling, auto-rotate, crop, resize, min-dimensions, zoom,
// extend, padding, rotate, blur, sharpen, pixelate, watermark, background
// flatten, encode. watermark is nil when no watermark directive is
// present or no watermark source could be resolved.
func runPipeline(raw []byte, opts ParsedOptions, watermark []byte) ([]byte, string, error) {
	start := time.Now()
	defer func() { processingDurationSeconds.Observe(time.Since(start).Seconds()) }()

	var preDPRResize *Resize
	if opts.Resize != nil {
		r := *opts.Resize
		preDPRResize = &r
	}
	scaleDPR(&opts)

	algorithm := "lanczos3"
	if opts.ResizingAlgorithm != nil {
		algorithm = *opts.ResizingAlgorithm
	}
	gravity := "center"
	if opts.Gravity != nil {
		gravity = *opts.Gravity
	}

	buf := raw

	if opts.AutoRotate {
		rotated, err := runBimg(buf, bimg.Options{NoAutoRotate: false}, "error applying exif auto-rotation")
		if err != nil {
			return nil, "", err
		}
		buf = rotated
	}

	if opts.Crop != nil {
		cropped, err := runBimg(buf, bimg.Options{
			Top: int(opts.Crop.Y), Left: int(opts.Crop.X),
			AreaWidth: int(opts.Crop.Width), AreaHeight: int(opts.Crop.Height),
		}, "error cropping image")
		if err != nil {
			return nil, "", err
		}
		buf = cropped
	}

	if opts.Resize != nil {
		size, err := imageSize(buf)
		if err != nil {
			return nil, "", err
		}
		bothExceedSource := opts.Resize.Width > uint32(size.Width) && opts.Resize.Height > uint32(size.Height)
		if opts.Enlarge || !bothExceedSource {
			resized, err := applyResize(buf, *opts.Resize, gravity, algorithm)
			if err != nil {
				return nil, "", err
			}
			buf = resized
		}
	}

	if opts.MinWidth != nil || opts.MinHeight != nil {
		scaled, err := applyMinDimensions(buf, opts.MinWidth, opts.MinHeight, algorithm)
		if err != nil {
			return nil, "", err
		}
		buf = scaled
	}

	if opts.Zoom != nil {
		zoomed, err := applyZoom(buf, *opts.Zoom, algorithm)
		if err != nil {
			return nil, "", err
		}
		buf = zoomed
	}

	// extend compares against the pre-DPR-scaled resize target but embeds
	// on a canvas of the DPR-scaled dims. preDPRResize was captured before
	// scaleDPR mutated opts.Resize in place above.
	if opts.Extend && preDPRResize != nil {
		size, err := imageSize(buf)
		if err != nil {
			return nil, "", err
		}
		if uint32(size.Width) < preDPRResize.Width || uint32(size.Height) < preDPRResize.Height {
			extended, err := applyExtend(buf, opts.Resize.Width, opts.Resize.Height, gravity, opts.Background)
			if err != nil {
				return nil, "", err
			}
			buf = extended
		}
	}

	if opts.Padding != nil {
		p := *opts.Padding
		padded, err := applyPadding(buf, p[0], p[1], p[2], p[3], opts.Background)
		if err != nil {
			return nil, "", err
		}
		buf = padded
	}

	if opts.Rotation != nil {
		rotated, err := applyRotation(buf, *opts.Rotation)
		if err != nil {
			return nil, "", err
		}
		buf = rotated
	}

	if opts.Blur != nil {
		blurred, err := applyBlur(buf, *opts.Blur)
		if err != nil {
			return nil, "", err
		}
		buf = blurred
	}

	if opts.Sharpen != nil {
		sharpened, err := applySharpen(buf, *opts.Sharpen)
		if err != nil {
			return nil, "", err
		}
		buf = sharpened
	}

	if opts.Pixelate != nil {
		pixelated, err := applyPixelate(buf, *opts.Pixelate, algorithm)
		if err != nil {
			return nil, "", err
		}
		buf = pixelated
	}

	if opts.Watermark != nil && watermark != nil {
		marked, err := applyWatermark(buf, watermark, *opts.Watermark, algorithm)
		if err != nil {
			return nil, "", err
		}
		buf = marked
	}

	format := "jpeg"
	if opts.Format != nil {
		format = *opts.Format
	}

	meta, err := bimg.NewImage(buf).Metadata()
	if err != nil {
		return nil, "", ErrProcessing.withMessage("error reading image metadata: " + err.Error())
	}
	if shouldFlattenBackground(meta.Channels, format) {
		flattened, err := applyBackgroundFlatten(buf, opts.Background)
		if err != nil {
			return nil, "", err
		}
		buf = flattened
	}

	quality := uint8(85)
	if opts.Quality != nil {
		quality = *opts.Quality
	}

	encoded, err := encodeOutput(buf, format, quality)
	if err != nil {
		return nil, "", err
	}

	return encoded, GetImageMimeType(ImageType(format)), nil
}
