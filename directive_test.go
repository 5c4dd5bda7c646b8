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

import "testing"

func mustParse(t *testing.T, directives []Directive) ParsedOptions {
	t.Helper()
	opts, err := parseAllOptions(directives)
	if err != nil {
		t.Fatalf("parseAllOptions(%+v): %v", directives, err)
	}
	return opts
}

func TestAliasEquivalence(t *testing.T) {
	full := mustParse(t, []Directive{{Name: "resize", Args: []string{"fill", "100", "200"}}})
	short := mustParse(t, []Directive{{Name: "rs", Args: []string{"fill", "100", "200"}}})

	if *full.Resize != *short.Resize {
		t.Fatalf("resize/rs alias mismatch: %+v vs %+v", full.Resize, short.Resize)
	}

	fullQ := mustParse(t, []Directive{{Name: "quality", Args: []string{"80"}}})
	shortQ := mustParse(t, []Directive{{Name: "q", Args: []string{"80"}}})
	if *fullQ.Quality != *shortQ.Quality {
		t.Fatalf("quality/q alias mismatch")
	}

	fullG := mustParse(t, []Directive{{Name: "gravity", Args: []string{"north"}}})
	shortG := mustParse(t, []Directive{{Name: "g", Args: []string{"north"}}})
	if *fullG.Gravity != *shortG.Gravity {
		t.Fatalf("gravity/g alias mismatch")
	}
}

func TestWidthHeightAloneImplyFitResize(t *testing.T) {
	opts := mustParse(t, []Directive{{Name: "width", Args: []string{"300"}}, {Name: "height", Args: []string{"200"}}})
	if opts.Resize == nil {
		t.Fatal("expected width+height alone to synthesize a resize directive")
	}
	if opts.Resize.ResizingType != "fit" || opts.Resize.Width != 300 || opts.Resize.Height != 200 {
		t.Fatalf("unexpected synthesized resize: %+v", opts.Resize)
	}
}

func TestResizeMergesFieldByField(t *testing.T) {
	opts := mustParse(t, []Directive{
		{Name: "resize", Args: []string{"fit", "100", "200"}},
		{Name: "width", Args: []string{"150"}},
	})
	if opts.Resize.Width != 150 || opts.Resize.Height != 200 || opts.Resize.ResizingType != "fit" {
		t.Fatalf("expected width: alone to merge into the existing resize, got %+v", opts.Resize)
	}
}

func TestResizeEmptyArgLeavesFieldUnchanged(t *testing.T) {
	opts := mustParse(t, []Directive{
		{Name: "resize", Args: []string{"fill", "100", "200"}},
		{Name: "resize", Args: []string{"", "300", ""}},
	})
	if opts.Resize.ResizingType != "fill" || opts.Resize.Width != 300 || opts.Resize.Height != 200 {
		t.Fatalf("expected empty args to leave prior fields untouched, got %+v", opts.Resize)
	}
}

func TestSizeImpliesFitWhenTypeUnset(t *testing.T) {
	opts := mustParse(t, []Directive{{Name: "size", Args: []string{"100", "200"}}})
	if opts.Resize == nil || opts.Resize.ResizingType != "fit" {
		t.Fatalf("expected size: to imply resizing_type fit, got %+v", opts.Resize)
	}
}

func TestLastWriteWinsForScalarFields(t *testing.T) {
	opts := mustParse(t, []Directive{
		{Name: "quality", Args: []string{"50"}},
		{Name: "quality", Args: []string{"90"}},
	})
	if *opts.Quality != 90 {
		t.Fatalf("expected last-write-wins quality of 90, got %d", *opts.Quality)
	}
}

func TestQualityClampedIntoRange(t *testing.T) {
	low := mustParse(t, []Directive{{Name: "quality", Args: []string{"0"}}})
	if *low.Quality != 1 {
		t.Fatalf("expected quality 0 clamped to 1, got %d", *low.Quality)
	}
	high := mustParse(t, []Directive{{Name: "quality", Args: []string{"255"}}})
	if *high.Quality != 100 {
		t.Fatalf("expected quality 255 clamped to 100, got %d", *high.Quality)
	}
}

func TestDPRRangeValidation(t *testing.T) {
	if _, err := parseAllOptions([]Directive{{Name: "dpr", Args: []string{"0.5"}}}); err == nil {
		t.Fatal("expected dpr below 1.0 to be rejected")
	}
	if _, err := parseAllOptions([]Directive{{Name: "dpr", Args: []string{"6"}}}); err == nil {
		t.Fatal("expected dpr above 5.0 to be rejected")
	}
	opts := mustParse(t, []Directive{{Name: "dpr", Args: []string{"2.5"}}})
	if *opts.DPR != 2.5 {
		t.Fatalf("expected dpr 2.5, got %v", *opts.DPR)
	}
}

func TestPaddingShorthands(t *testing.T) {
	one := mustParse(t, []Directive{{Name: "padding", Args: []string{"5"}}})
	if *one.Padding != [4]uint32{5, 5, 5, 5} {
		t.Fatalf("expected uniform padding, got %+v", *one.Padding)
	}
	two := mustParse(t, []Directive{{Name: "padding", Args: []string{"5", "10"}}})
	if *two.Padding != [4]uint32{5, 10, 5, 10} {
		t.Fatalf("expected vertical/horizontal padding, got %+v", *two.Padding)
	}
	four := mustParse(t, []Directive{{Name: "padding", Args: []string{"1", "2", "3", "4"}}})
	if *four.Padding != [4]uint32{1, 2, 3, 4} {
		t.Fatalf("expected four-sided padding, got %+v", *four.Padding)
	}
	if _, err := parseAllOptions([]Directive{{Name: "padding", Args: []string{"1", "2", "3"}}}); err == nil {
		t.Fatal("expected a 3-argument padding to be rejected")
	}
}

func TestBooleanArgParsing(t *testing.T) {
	trueVariants := []string{"1", "true"}
	for _, v := range trueVariants {
		if !parseBooleanArg(v) {
			t.Fatalf("expected %q to parse as true", v)
		}
	}
	falseVariants := []string{"0", "false", "yes", "TRUE", ""}
	for _, v := range falseVariants {
		if parseBooleanArg(v) {
			t.Fatalf("expected %q to parse as false", v)
		}
	}
}

func TestHexColorParsing(t *testing.T) {
	c, err := parseHexColor("#FF0000")
	if err != nil {
		t.Fatalf("parseHexColor: %v", err)
	}
	if c != [4]uint8{255, 0, 0, 255} {
		t.Fatalf("unexpected color: %+v", c)
	}

	c2, err := parseHexColor("00ff00")
	if err != nil {
		t.Fatalf("parseHexColor without hash: %v", err)
	}
	if c2 != [4]uint8{0, 255, 0, 255} {
		t.Fatalf("unexpected color: %+v", c2)
	}

	if _, err := parseHexColor("ff00"); err == nil {
		t.Fatal("expected an unsupported hex length to fail")
	}
	if _, err := parseHexColor("zzzzzz"); err == nil {
		t.Fatal("expected non-hex digits to fail")
	}
}

func TestResizingAlgorithmEnum(t *testing.T) {
	opts := mustParse(t, []Directive{{Name: "resizing_algorithm", Args: []string{"lanczos2"}}})
	if *opts.ResizingAlgorithm != "lanczos2" {
		t.Fatalf("expected lanczos2, got %s", *opts.ResizingAlgorithm)
	}
	if _, err := parseAllOptions([]Directive{{Name: "ra", Args: []string{"bogus"}}}); err == nil {
		t.Fatal("expected an unsupported resizing algorithm to be rejected")
	}
}

func TestWatermarkURLInvalidBase64(t *testing.T) {
	if _, err := parseAllOptions([]Directive{{Name: "wmu", Args: []string{"not base64!!"}}}); err == nil {
		t.Fatal("expected invalid base64 watermark_url to be rejected")
	}
}

func TestUnknownDirectiveIgnored(t *testing.T) {
	opts, err := parseAllOptions([]Directive{{Name: "totally_unknown_directive", Args: []string{"1"}}})
	if err != nil {
		t.Fatalf("expected unknown directives to be ignored, got %v", err)
	}
	if opts.Resize != nil {
		t.Fatal("expected no side effects from an unknown directive")
	}
}

func TestArityErrors(t *testing.T) {
	cases := [][]Directive{
		{{Name: "gravity", Args: nil}},
		{{Name: "crop", Args: []string{"1", "2", "3"}}},
		{{Name: "watermark", Args: []string{"0.5"}}},
		{{Name: "rotate", Args: nil}},
	}
	for _, c := range cases {
		if _, err := parseAllOptions(c); err == nil {
			t.Fatalf("expected an arity error for %+v", c)
		}
	}
}
