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
	"fmt"
	"math"
	"strings"

	"github.com/h2non/bimg"
)

const scaleEpsilon = 1e-6

// resizeInterpolator maps the resizing_algorithm directive onto the
// closest bimg.Interpolator, since bimg exposes interpolators rather than
// the underlying vips kernel enum.
func resizeInterpolator(algorithm string) bimg.Interpolator {
	switch algorithm {
	case "nearest":
		return bimg.Nearest
	case "linear":
		return bimg.Bilinear
	case "cubic":
		return bimg.Bicubic
	case "lanczos2", "lanczos3":
		return bimg.Nohalo
	default:
		return bimg.Bicubic
	}
}

// runBimg decodes buf, applies opts, and re-encodes, translating libvips
// failures into Processing errors. This single-call-per-stage shape is how
// bimg is meant to be driven: each Options struct is one decode-process-
// encode round trip, so a multi-step pipeline chains several of these.
func runBimg(buf []byte, opts bimg.Options, context string) ([]byte, error) {
	out, err := bimg.NewImage(buf).Process(opts)
	if err != nil {
		return nil, ErrProcessing.withMessage(fmt.Sprintf("%s: %s", context, err.Error()))
	}
	return out, nil
}

func imageSize(buf []byte) (bimg.ImageSize, error) {
	size, err := bimg.NewImage(buf).Size()
	if err != nil {
		return bimg.ImageSize{}, ErrProcessing.withMessage("error reading image dimensions: " + err.Error())
	}
	return size, nil
}

// scaleDPR multiplies resize/padding targets by dpr in place, per the
// orchestration order's first pipeline stage.
func scaleDPR(opts *ParsedOptions) {
	if opts.DPR == nil || *opts.DPR <= 1.0 {
		return
	}
	dpr := *opts.DPR
	if opts.Resize != nil {
		opts.Resize.Width = uint32(math.Round(float64(opts.Resize.Width) * float64(dpr)))
		opts.Resize.Height = uint32(math.Round(float64(opts.Resize.Height) * float64(dpr)))
	}
	if opts.Padding != nil {
		for i := range opts.Padding {
			opts.Padding[i] = uint32(math.Round(float64(opts.Padding[i]) * float64(dpr)))
		}
	}
}

func isPortrait(w, h uint32) bool { return h > w }

// resolveResizeDimensions fills in a zero width or height from the source
// aspect ratio. "force" keeps the source dimension for whichever side was
// left unset.
func resolveResizeDimensions(r Resize, srcW, srcH uint32) (uint32, uint32, error) {
	width, height := r.Width, r.Height
	if width == 0 && height == 0 {
		return 0, 0, ErrBadDirective.withMessage("resize requires at least one non-zero dimension")
	}

	aspect := float64(srcW) / float64(srcH)

	if r.ResizingType == "force" {
		if width == 0 {
			width = srcW
		}
		if height == 0 {
			height = srcH
		}
	} else {
		if width == 0 {
			width = uint32(math.Round(float64(height) * aspect))
		}
		if height == 0 {
			height = uint32(math.Round(float64(width) / aspect))
		}
	}

	if width == 0 || height == 0 {
		return 0, 0, ErrProcessing.withMessage("resize resolved to zero dimension")
	}
	return width, height, nil
}

// applyResize dispatches to the fit/fill/force/auto algorithm. "auto"
// picks fill when source and target share an orientation, fit otherwise.
func applyResize(buf []byte, r Resize, gravity string, algorithm string) ([]byte, error) {
	size, err := imageSize(buf)
	if err != nil {
		return nil, err
	}
	srcW, srcH := uint32(size.Width), uint32(size.Height)

	targetW, targetH, err := resolveResizeDimensions(r, srcW, srcH)
	if err != nil {
		return nil, err
	}

	switch r.ResizingType {
	case "fill":
		return resizeToFill(buf, srcW, srcH, targetW, targetH, gravity, algorithm)
	case "fit":
		return resizeToFit(buf, srcW, srcH, targetW, targetH, algorithm)
	case "force":
		return resizeToForce(buf, srcW, srcH, targetW, targetH, algorithm)
	case "auto":
		if isPortrait(srcW, srcH) == isPortrait(targetW, targetH) {
			return resizeToFill(buf, srcW, srcH, targetW, targetH, gravity, algorithm)
		}
		return resizeToFit(buf, srcW, srcH, targetW, targetH, algorithm)
	default:
		return nil, ErrBadDirective.withMessage("unknown resize type: " + r.ResizingType)
	}
}

// resizeToFill scales to cover the target box then crops the excess,
// biasing the crop by gravity using the fixed tie-break: west/north pin to
// 0, east/south take the full excess, every other gravity centers it.
func resizeToFill(buf []byte, srcW, srcH, width, height uint32, gravity, algorithm string) ([]byte, error) {
	aspect := float32(srcW) / float32(srcH)
	targetAspect := float32(width) / float32(height)

	var scale float64
	if aspect > targetAspect {
		scale = float64(height) / float64(srcH)
	} else {
		scale = float64(width) / float64(srcW)
	}
	scale *= 1.0 + scaleEpsilon

	resizedW := uint32(math.Round(float64(srcW) * scale))
	resizedH := uint32(math.Round(float64(srcH) * scale))

	resized, err := runBimg(buf, bimg.Options{
		Width:        int(resizedW),
		Height:       int(resizedH),
		Force:        true,
		Interpolator: resizeInterpolator(algorithm),
	}, "error resizing for fill")
	if err != nil {
		return nil, err
	}

	size, err := imageSize(resized)
	if err != nil {
		return nil, err
	}
	rw, rh := uint32(size.Width), uint32(size.Height)
	if rw < width || rh < height {
		return nil, ErrProcessing.withMessage(fmt.Sprintf("resized image %dx%d is smaller than fill target %dx%d", rw, rh, width, height))
	}

	extraW := rw - width
	extraH := rh - height

	var cropX uint32
	switch {
	case strings.Contains(gravity, "west"):
		cropX = 0
	case strings.Contains(gravity, "east"):
		cropX = extraW
	default:
		cropX = extraW / 2
	}

	var cropY uint32
	switch {
	case strings.Contains(gravity, "north"):
		cropY = 0
	case strings.Contains(gravity, "south"):
		cropY = extraH
	default:
		cropY = extraH / 2
	}

	return runBimg(resized, bimg.Options{
		Top:        int(cropY),
		Left:       int(cropX),
		AreaWidth:  int(width),
		AreaHeight: int(height),
	}, "error cropping after fill resize")
}

func resizeToForce(buf []byte, srcW, srcH, width, height uint32, algorithm string) ([]byte, error) {
	scaleX := float64(width) / float64(srcW)
	scaleY := float64(height) / float64(srcH)
	if math.Abs(scaleX-1.0) < scaleEpsilon && math.Abs(scaleY-1.0) < scaleEpsilon {
		return buf, nil
	}
	return runBimg(buf, bimg.Options{
		Width:        int(width),
		Height:       int(height),
		Force:        true,
		Interpolator: resizeInterpolator(algorithm),
	}, "error force resizing")
}

func resizeToFit(buf []byte, srcW, srcH, width, height uint32, algorithm string) ([]byte, error) {
	aspect := float32(srcW) / float32(srcH)

	var targetW, targetH uint32
	switch {
	case height == 0:
		targetW, targetH = width, uint32(math.Round(float64(width)/float64(aspect)))
	case width == 0:
		targetW, targetH = uint32(math.Round(float64(height)*float64(aspect))), height
	default:
		targetW, targetH = width, height
	}

	return runBimg(buf, bimg.Options{
		Width:        int(targetW),
		Height:       int(targetH),
		Interpolator: resizeInterpolator(algorithm),
	}, "error fitting resize")
}

// applyMinDimensions scales up (never down) so the image is at least
// min_width by min_height, keeping aspect by using the larger axis scale.
func applyMinDimensions(buf []byte, minWidth, minHeight *uint32, algorithm string) ([]byte, error) {
	size, err := imageSize(buf)
	if err != nil {
		return nil, err
	}
	w, h := float64(size.Width), float64(size.Height)

	scaleW := 1.0
	if minWidth != nil && w < float64(*minWidth) {
		scaleW = float64(*minWidth) / w
	}
	scaleH := 1.0
	if minHeight != nil && h < float64(*minHeight) {
		scaleH = float64(*minHeight) / h
	}

	scale := math.Max(scaleW, scaleH)
	if scale <= 1.0 {
		return buf, nil
	}

	return runBimg(buf, bimg.Options{
		Width:        int(math.Round(w * scale)),
		Height:       int(math.Round(h * scale)),
		Force:        true,
		Interpolator: resizeInterpolator(algorithm),
	}, "error applying min dimensions")
}

func applyZoom(buf []byte, zoom float32, algorithm string) ([]byte, error) {
	size, err := imageSize(buf)
	if err != nil {
		return nil, err
	}
	return runBimg(buf, bimg.Options{
		Width:        int(math.Round(float64(size.Width) * float64(zoom))),
		Height:       int(math.Round(float64(size.Height) * float64(zoom))),
		Force:        true,
		Interpolator: resizeInterpolator(algorithm),
	}, "error applying zoom")
}

// applyExtend pads the canvas out to width x height, positioning the
// image by gravity.
func applyExtend(buf []byte, width, height uint32, gravity string, background *[4]uint8) ([]byte, error) {
	opts := bimg.Options{
		Width:   int(width),
		Height:  int(height),
		Embed:   true,
		Gravity: extendGravity(gravity),
	}
	if background != nil {
		opts.Background = bimg.Color{R: background[0], G: background[1], B: background[2]}
	}
	return runBimg(buf, opts, "error extending image")
}

func extendGravity(gravity string) bimg.Gravity {
	switch gravity {
	case "north":
		return bimg.GravityNorth
	case "south":
		return bimg.GravitySouth
	case "west":
		return bimg.GravityWest
	case "east":
		return bimg.GravityEast
	default:
		return bimg.GravityCentre
	}
}

// applyPadding grows the canvas by the four side amounts, embedding the
// image with a negative top-left offset.
func applyPadding(buf []byte, top, right, bottom, left uint32, background *[4]uint8) ([]byte, error) {
	size, err := imageSize(buf)
	if err != nil {
		return nil, err
	}
	opts := bimg.Options{
		Top:    -int(top),
		Left:   -int(left),
		Width:  size.Width + int(left) + int(right),
		Height: size.Height + int(top) + int(bottom),
		Embed:  true,
	}
	if background != nil {
		opts.Background = bimg.Color{R: background[0], G: background[1], B: background[2]}
	}
	return runBimg(buf, opts, "error applying padding")
}

func applyRotation(buf []byte, rotation uint16) ([]byte, error) {
	var angle bimg.Angle
	switch rotation {
	case 90:
		angle = bimg.D90
	case 180:
		angle = bimg.D180
	case 270:
		angle = bimg.D270
	default:
		return buf, nil
	}
	return runBimg(buf, bimg.Options{Rotate: angle, NoAutoRotate: true}, "error rotating")
}

func applyBlur(buf []byte, sigma float32) ([]byte, error) {
	return runBimg(buf, bimg.Options{
		GaussianBlur: bimg.GaussianBlur{Sigma: float64(sigma)},
	}, "error applying blur")
}

func applySharpen(buf []byte, sigma float32) ([]byte, error) {
	if sigma < 0.1 {
		sigma = 0.1
	} else if sigma > 10 {
		sigma = 10
	}
	return runBimg(buf, bimg.Options{
		Sharpen: bimg.Sharpen{Radius: int(math.Round(float64(sigma))), X1: 2, M1: 1, M2: 2},
	}, "error applying sharpen")
}

// applyPixelate mosaics the image by downscaling with nearest-neighbour
// then upscaling back to the original dimensions.
func applyPixelate(buf []byte, amount uint32, algorithm string) ([]byte, error) {
	if amount == 0 {
		return buf, nil
	}
	size, err := imageSize(buf)
	if err != nil {
		return nil, err
	}
	down, err := runBimg(buf, bimg.Options{
		Width:        int(math.Max(1, math.Round(float64(size.Width)/float64(amount)))),
		Force:        true,
		Interpolator: bimg.Nearest,
	}, "error pixelating (down)")
	if err != nil {
		return nil, err
	}
	return runBimg(down, bimg.Options{
		Width:        size.Width,
		Height:       size.Height,
		Force:        true,
		Interpolator: resizeInterpolator(algorithm),
	}, "error pixelating (up)")
}

// shouldFlattenBackground reports whether a background flatten must run
// before encoding: JPEG output cannot carry alpha, so any alpha-capable
// band count triggers it even without an explicit background color.
func shouldFlattenBackground(bands int, outputFormat string) bool {
	return (outputFormat == "jpeg" || outputFormat == "jpg") && (bands == 4 || bands == 2)
}

func applyBackgroundFlatten(buf []byte, background *[4]uint8) ([]byte, error) {
	bg := bimg.Color{R: 0, G: 0, B: 0}
	if background != nil {
		bg = bimg.Color{R: background[0], G: background[1], B: background[2]}
	}
	return runBimg(buf, bimg.Options{Background: bg}, "error applying background color")
}

// encodeOutput re-encodes buf into the requested format with per-format
// quality/compression knobs.
func encodeOutput(buf []byte, format string, quality uint8) ([]byte, error) {
	t := ImageType(format)
	if t == bimg.UNKNOWN {
		return nil, ErrOutputFormat.withMessage("unsupported output format: " + format)
	}

	opts := bimg.Options{Type: t, Quality: int(quality)}
	if t == bimg.JPEG || t == bimg.PNG {
		opts.StripMetadata = true
	}
	if format == "png" {
		effort := int(quality) / 10
		if effort < 1 {
			effort = 1
		} else if effort > 10 {
			effort = 10
		}
		opts.Compression = 9
		opts.Speed = effort
	}

	return runBimg(buf, opts, "error encoding "+format)
}
