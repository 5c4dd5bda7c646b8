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
	"strconv"
	"strings"
)

// Resize holds the merged fields of a resize/rs/size directive. A zero
// value of width/height means "unset"; resizingType empty means "unset".
type Resize struct {
	ResizingType string
	Width        uint32
	Height       uint32
}

// Crop holds the four crop:x:y:width:height fields.
type Crop struct {
	X, Y, Width, Height uint32
}

// Watermark holds the opacity/position pair from a watermark/wm directive.
type Watermark struct {
	Opacity  float32
	Position string
}

// ParsedOptions is the fully merged, typed directive set for one request.
// Nil pointer fields mean "not requested".
type ParsedOptions struct {
	Resize *Resize
	Crop   *Crop

	Width  *uint32
	Height *uint32

	Gravity *string

	Enlarge bool
	Extend  bool

	Padding *[4]uint32 // top, right, bottom, left

	Rotation   *uint16
	AutoRotate bool
	Raw        bool

	Blur     *float32
	Sharpen  *float32
	Pixelate *uint32

	Background *[4]uint8

	Format  *string
	Quality *uint8

	MaxSrcResolution *float32
	MaxSrcFileSize   *uint64
	CacheBuster      *string

	DPR *float32

	MinWidth  *uint32
	MinHeight *uint32

	Zoom *float32

	Watermark    *Watermark
	WatermarkURL *string

	ResizingAlgorithm *string
}

// defaultParsedOptions returns the baseline option set: auto_rotate on,
// dpr 1.0, resizing_algorithm lanczos3, everything else unset.
func defaultParsedOptions() ParsedOptions {
	one := float32(1.0)
	lanczos3 := "lanczos3"
	return ParsedOptions{
		AutoRotate:        true,
		DPR:               &one,
		ResizingAlgorithm: &lanczos3,
	}
}

func parseBooleanArg(s string) bool {
	return s == "1" || s == "true"
}

func parseHexColor(hex string) ([4]uint8, error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return [4]uint8{}, ErrBadDirective.withMessage("invalid hex color format")
	}
	var out [4]uint8
	for i, lo := 0, 0; i < 3; i++ {
		lo = i * 2
		v, err := strconv.ParseUint(hex[lo:lo+2], 16, 8)
		if err != nil {
			return [4]uint8{}, ErrBadDirective.withMessage("invalid hex color")
		}
		out[i] = uint8(v)
	}
	out[3] = 255
	return out, nil
}

// Directive name constants and their short aliases, matching the
// imgproxy URL dialect.
const (
	dResize      = "resize"
	dResizeShort = "rs"

	dResizingType      = "resizing_type"
	dResizingTypeShort = "rt"

	dSize         = "size"
	dSizeShort    = "sz"
	dSizeShortAlt = "s"

	dWidth      = "width"
	dWidthShort = "w"

	dHeight      = "height"
	dHeightShort = "h"

	dGravity      = "gravity"
	dGravityShort = "g"

	dQuality      = "quality"
	dQualityShort = "q"

	dAutoRotate      = "auto_rotate"
	dAutoRotateShort = "ar"

	dBackground      = "background"
	dBackgroundShort = "bg"

	dEnlarge      = "enlarge"
	dEnlargeShort = "el"

	dExtend      = "extend"
	dExtendShort = "ex"

	dPadding      = "padding"
	dPaddingShort = "pd"

	dRotate      = "rotate"
	dRotateShort = "rot"

	dRaw = "raw"

	dBlur      = "blur"
	dBlurShort = "bl"

	dCrop = "crop"

	dFormat = "format"

	dMaxSrcResolution = "max_src_resolution"
	dMaxSrcFileSize   = "max_src_file_size"
	dCacheBuster      = "cache_buster"

	dDPR = "dpr"

	dMinWidth      = "min_width"
	dMinWidthShort = "mw"

	dMinHeight      = "min_height"
	dMinHeightShort = "mh"

	dZoom      = "zoom"
	dZoomShort = "z"

	dSharpen      = "sharpen"
	dSharpenShort = "sh"

	dPixelate      = "pixelate"
	dPixelateShort = "px"

	dWatermark      = "watermark"
	dWatermarkShort = "wm"

	dWatermarkURL      = "watermark_url"
	dWatermarkURLShort = "wmu"

	dResizingAlgorithm      = "resizing_algorithm"
	dResizingAlgorithmShort = "ra"

	dPreset      = "preset"
	dPresetShort = "pr"
)

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func parseU16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func parseF32(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func argAt(args []string, i int) (string, bool) {
	if i < 0 || i >= len(args) {
		return "", false
	}
	return args[i], true
}

// parseAllOptions walks the directive list and builds a ParsedOptions,
// applying each directive's arity/typing/merge rules. Scalar directives
// are last-write-wins, resize/size merge field-by-field into the same
// struct, and an empty string argument means "leave this field unchanged".
func parseAllOptions(directives []Directive) (ParsedOptions, error) {
	opts := defaultParsedOptions()

	for _, d := range directives {
		switch d.Name {
		case dResize, dResizeShort:
			r := Resize{}
			if opts.Resize != nil {
				r = *opts.Resize
			}
			store := opts.Resize != nil

			if arg, ok := argAt(d.Args, 0); ok && arg != "" {
				r.ResizingType = arg
				store = true
			}
			if arg, ok := argAt(d.Args, 1); ok && arg != "" {
				w, err := parseU32(arg)
				if err != nil {
					return opts, ErrBadDirective.withMessage("invalid width for resize: " + err.Error())
				}
				r.Width = w
				store = true
			}
			if arg, ok := argAt(d.Args, 2); ok && arg != "" {
				h, err := parseU32(arg)
				if err != nil {
					return opts, ErrBadDirective.withMessage("invalid height for resize: " + err.Error())
				}
				r.Height = h
				store = true
			}
			if arg, ok := argAt(d.Args, 3); ok && arg != "" {
				opts.Enlarge = parseBooleanArg(arg)
			}
			if arg, ok := argAt(d.Args, 4); ok && arg != "" {
				opts.Extend = parseBooleanArg(arg)
			}
			if store {
				opts.Resize = &r
			}

		case dResizingType, dResizingTypeShort:
			r := Resize{}
			if opts.Resize != nil {
				r = *opts.Resize
			}
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("resizing_type option requires one argument")
			}
			r.ResizingType = d.Args[0]
			opts.Resize = &r

		case dSize, dSizeShort, dSizeShortAlt:
			r := Resize{}
			if opts.Resize != nil {
				r = *opts.Resize
			}
			store := opts.Resize != nil

			if arg, ok := argAt(d.Args, 0); ok && arg != "" {
				w, err := parseU32(arg)
				if err != nil {
					return opts, ErrBadDirective.withMessage("invalid width for size: " + err.Error())
				}
				r.Width = w
				store = true
			}
			if arg, ok := argAt(d.Args, 1); ok && arg != "" {
				h, err := parseU32(arg)
				if err != nil {
					return opts, ErrBadDirective.withMessage("invalid height for size: " + err.Error())
				}
				r.Height = h
				store = true
			}
			if arg, ok := argAt(d.Args, 2); ok && arg != "" {
				opts.Enlarge = parseBooleanArg(arg)
			}
			if arg, ok := argAt(d.Args, 3); ok && arg != "" {
				opts.Extend = parseBooleanArg(arg)
			}

			if store && r.ResizingType == "" {
				r.ResizingType = "fit"
			}
			if store {
				opts.Resize = &r
			}

		case dWidth, dWidthShort:
			arg, _ := argAt(d.Args, 0)
			var w uint32
			if arg != "" {
				var err error
				w, err = parseU32(arg)
				if err != nil {
					return opts, ErrBadDirective.withMessage("invalid width: " + err.Error())
				}
			}
			opts.Width = &w
			if opts.Resize != nil {
				opts.Resize.Width = w
			}

		case dHeight, dHeightShort:
			arg, _ := argAt(d.Args, 0)
			var h uint32
			if arg != "" {
				var err error
				h, err = parseU32(arg)
				if err != nil {
					return opts, ErrBadDirective.withMessage("invalid height: " + err.Error())
				}
			}
			opts.Height = &h
			if opts.Resize != nil {
				opts.Resize.Height = h
			}

		case dGravity, dGravityShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("gravity option requires one argument")
			}
			g := d.Args[0]
			opts.Gravity = &g

		case dEnlarge, dEnlargeShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("enlarge option requires one argument")
			}
			opts.Enlarge = parseBooleanArg(d.Args[0])

		case dExtend, dExtendShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("extend option requires one argument")
			}
			opts.Extend = parseBooleanArg(d.Args[0])

		case dPadding, dPaddingShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("padding option requires at least one argument")
			}
			values := make([]uint32, len(d.Args))
			for i, a := range d.Args {
				v, err := parseU32(a)
				if err != nil {
					return opts, ErrBadDirective.withMessage("invalid padding value: " + err.Error())
				}
				values[i] = v
			}
			var p [4]uint32
			switch len(values) {
			case 1:
				p = [4]uint32{values[0], values[0], values[0], values[0]}
			case 2:
				p = [4]uint32{values[0], values[1], values[0], values[1]}
			case 4:
				p = [4]uint32{values[0], values[1], values[2], values[3]}
			default:
				return opts, ErrBadDirective.withMessage("padding must have 1, 2, or 4 arguments")
			}
			opts.Padding = &p

		case dRotate, dRotateShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("rotation option requires one argument")
			}
			r, err := parseU16(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid rotation: " + err.Error())
			}
			opts.Rotation = &r

		case dAutoRotate, dAutoRotateShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("auto_rotate option requires one argument")
			}
			opts.AutoRotate = parseBooleanArg(d.Args[0])

		case dRaw:
			opts.Raw = true

		case dBlur, dBlurShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("blur option requires one argument: sigma")
			}
			v, err := parseF32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid sigma for blur: " + err.Error())
			}
			opts.Blur = &v

		case dCrop:
			if len(d.Args) < 4 {
				return opts, ErrBadDirective.withMessage("crop option requires four arguments: x, y, width, height")
			}
			x, err := parseU32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid x for crop: " + err.Error())
			}
			y, err := parseU32(d.Args[1])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid y for crop: " + err.Error())
			}
			w, err := parseU32(d.Args[2])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid width for crop: " + err.Error())
			}
			h, err := parseU32(d.Args[3])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid height for crop: " + err.Error())
			}
			opts.Crop = &Crop{X: x, Y: y, Width: w, Height: h}

		case dFormat:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("format option requires one argument")
			}
			f := d.Args[0]
			opts.Format = &f

		case dQuality, dQualityShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("quality option requires one argument")
			}
			v, err := strconv.ParseUint(d.Args[0], 10, 8)
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid quality: " + err.Error())
			}
			q := uint8(v)
			if q < 1 {
				q = 1
			} else if q > 100 {
				q = 100
			}
			opts.Quality = &q

		case dBackground, dBackgroundShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("background option requires one argument")
			}
			bg, err := parseHexColor(d.Args[0])
			if err != nil {
				return opts, err
			}
			opts.Background = &bg

		case dMaxSrcResolution:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("max_src_resolution option requires one argument")
			}
			v, err := parseF32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid max_src_resolution: " + err.Error())
			}
			opts.MaxSrcResolution = &v

		case dMaxSrcFileSize:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("max_src_file_size option requires one argument")
			}
			v, err := strconv.ParseUint(d.Args[0], 10, 64)
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid max_src_file_size: " + err.Error())
			}
			opts.MaxSrcFileSize = &v

		case dCacheBuster:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("cache_buster option requires one argument")
			}
			cb := d.Args[0]
			opts.CacheBuster = &cb

		case dDPR:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("dpr option requires one argument")
			}
			v, err := parseF32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid dpr value: " + err.Error())
			}
			if v < 1.0 || v > 5.0 {
				return opts, ErrBadDirective.withMessage("dpr value must be between 1.0 and 5.0")
			}
			opts.DPR = &v

		case dMinWidth, dMinWidthShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("min_width option requires one argument")
			}
			v, err := parseU32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid min_width: " + err.Error())
			}
			opts.MinWidth = &v

		case dMinHeight, dMinHeightShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("min_height option requires one argument")
			}
			v, err := parseU32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid min_height: " + err.Error())
			}
			opts.MinHeight = &v

		case dZoom, dZoomShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("zoom option requires one argument")
			}
			v, err := parseF32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid zoom: " + err.Error())
			}
			opts.Zoom = &v

		case dSharpen, dSharpenShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("sharpen option requires one argument")
			}
			v, err := parseF32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid sharpen: " + err.Error())
			}
			opts.Sharpen = &v

		case dPixelate, dPixelateShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("pixelate option requires one argument")
			}
			v, err := parseU32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid pixelate: " + err.Error())
			}
			opts.Pixelate = &v

		case dWatermark, dWatermarkShort:
			if len(d.Args) < 2 {
				return opts, ErrBadDirective.withMessage("watermark option requires two arguments: opacity, position")
			}
			op, err := parseF32(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid opacity for watermark: " + err.Error())
			}
			opts.Watermark = &Watermark{Opacity: op, Position: d.Args[1]}

		case dWatermarkURL, dWatermarkURLShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("watermark_url option requires one argument")
			}
			decoded, err := base64.RawURLEncoding.DecodeString(d.Args[0])
			if err != nil {
				return opts, ErrBadDirective.withMessage("invalid base64 for watermark_url: " + err.Error())
			}
			u := string(decoded)
			opts.WatermarkURL = &u

		case dResizingAlgorithm, dResizingAlgorithmShort:
			if len(d.Args) == 0 {
				return opts, ErrBadDirective.withMessage("resizing_algorithm option requires one argument")
			}
			alg := strings.ToLower(d.Args[0])
			switch alg {
			case "nearest", "linear", "cubic", "lanczos2", "lanczos3":
			default:
				return opts, ErrBadDirective.withMessage("invalid resizing algorithm: " + alg)
			}
			opts.ResizingAlgorithm = &alg

		case dPreset, dPresetShort:
			// Handled by expandPresets before parseAllOptions runs; a
			// leftover preset directive here is a bug in the caller, not
			// a client error, so it is silently ignored like any other
			// unrecognized directive would be.

		default:
			// Unknown directives are ignored for forward compatibility.
		}
	}

	// Default resize type is "fit" when only width/height were given.
	if opts.Resize == nil && (opts.Width != nil || opts.Height != nil) {
		var w, h uint32
		if opts.Width != nil {
			w = *opts.Width
		}
		if opts.Height != nil {
			h = *opts.Height
		}
		opts.Resize = &Resize{ResizingType: "fit", Width: w, Height: h}
	}

	return opts, nil
}
