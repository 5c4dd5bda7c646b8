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

import "strings"

// parsePresetBody splits a preset's stored "name:args/name:args" body into
// Directives, the same grammar a request path's directive prefix uses.
func parsePresetBody(body string) ([]Directive, error) {
	var directives []Directive
	for _, part := range strings.Split(body, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments := strings.Split(part, ":")
		if segments[0] == "" {
			return nil, ErrBadDirective.withMessage("invalid preset option: " + part)
		}
		directives = append(directives, Directive{Name: segments[0], Args: segments[1:]})
	}
	return directives, nil
}

// expandPresets splices preset/pr directives into their stored bodies, with
// the "default" preset (when configured) always applied first. Presets do
// not nest: a directive inside an expanded preset body that is itself a
// preset reference is rejected rather than resolved recursively.
func expandPresets(directives []Directive, cfg *Config) ([]Directive, error) {
	expanded := make([]Directive, 0, len(directives))
	hasPresetReference := false

	if defaultBody, ok := cfg.Presets["default"]; ok {
		body, err := parsePresetBody(defaultBody)
		if err != nil {
			return nil, err
		}
		if err := rejectNestedPresets(body); err != nil {
			return nil, err
		}
		expanded = append(expanded, body...)
	}

	for _, d := range directives {
		switch d.Name {
		case dPreset, dPresetShort:
			hasPresetReference = true
			if len(d.Args) == 0 {
				return nil, ErrBadDirective.withMessage("preset option requires a preset name")
			}
			name := d.Args[0]
			body, ok := cfg.Presets[name]
			if !ok {
				return nil, ErrUnknownPreset.withMessage("unknown preset: " + name)
			}
			presetDirectives, err := parsePresetBody(body)
			if err != nil {
				return nil, err
			}
			if err := rejectNestedPresets(presetDirectives); err != nil {
				return nil, err
			}
			expanded = append(expanded, presetDirectives...)

		default:
			if cfg.OnlyPresets {
				return nil, ErrOnlyPresets.withMessage("only preset references are allowed in only_presets mode, found: " + d.Name)
			}
			expanded = append(expanded, d)
		}
	}

	if cfg.OnlyPresets && !hasPresetReference {
		if _, hasDefault := cfg.Presets["default"]; !hasDefault && len(expanded) > 0 {
			return nil, ErrOnlyPresets.withMessage("only preset references are allowed in only_presets mode")
		}
	}

	return expanded, nil
}

func rejectNestedPresets(directives []Directive) error {
	for _, d := range directives {
		if d.Name == dPreset || d.Name == dPresetShort {
			return ErrPresetNesting
		}
	}
	return nil
}
