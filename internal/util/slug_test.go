// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Hello World", "hello-world"},
		{"accents", "Café au Lait", "cafe-au-lait"},
		{"punctuation", "What's New, Today?", "whats-new-today"},
		{"multiple spaces", "a   b", "a-b"},
		{"leading trailing", " -trimmed- ", "trimmed"},
		{"cyrillic", "Привет", "privet"},
		{"numbers", "Top 10 Stories", "top-10-stories"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug  string
		valid bool
	}{
		{"hello-world", true},
		{"a1-b2", true},
		{"", false},
		{"-leading", false},
		{"trailing-", false},
		{"UPPER", false},
		{"has space", false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.slug); got != tt.valid {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.valid)
		}
	}
}

func TestSlugifyProducesValidSlugs(t *testing.T) {
	inputs := []string{"Hello World", "Café au Lait", "Top 10: the best", "Привет мир"}
	for _, in := range inputs {
		slug := Slugify(in)
		if slug != "" && !IsValidSlug(slug) {
			t.Errorf("Slugify(%q) = %q is not a valid slug", in, slug)
		}
	}
}
