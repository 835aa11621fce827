// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose utility functions including
// URL slug generation and validation with Unicode normalization support.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// slugRegex matches non-alphanumeric characters (except hyphens)
	slugRegex = regexp.MustCompile(`[^a-z0-9-]+`)
	// multipleHyphens matches multiple consecutive hyphens
	multipleHyphens = regexp.MustCompile(`-{2,}`)
	// menuSlugRegex matches slugs accepted on the public menu endpoint
	menuSlugRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Slugify converts a string to a URL-friendly slug.
// It converts to lowercase, removes accents, replaces spaces with hyphens,
// and removes all non-alphanumeric characters except hyphens.
func Slugify(s string) string {
	// Normalize unicode characters (decompose accents)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)

	result = strings.ToLower(result)
	result = strings.ReplaceAll(result, " ", "-")
	result = slugRegex.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	return result
}

// IsValidSlug checks if a string is a valid slug format.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}

	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}

	if strings.Contains(s, "--") {
		return false
	}

	return true
}

// IsValidMenuSlug checks a slug against the wider pattern accepted on the
// public menu endpoints ([a-zA-Z0-9_-]+).
func IsValidMenuSlug(s string) bool {
	return menuSlugRegex.MatchString(s)
}
