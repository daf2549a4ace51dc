package entity

import (
	"fmt"
	"regexp"
	"strings"
)

// TemplateTypePrefix marks a tag type implemented by a custom template.
const TemplateTypePrefix = "cvt_"

// GallerySentinel is the placeholder id templates carry before publication.
// It never remaps.
const GallerySentinel = "cvt_temp_public_id"

// TypeString derives the container-scoped type string for a template.
// Tags implemented by the template carry this value in their type field.
func TypeString(containerID, templateID string) string {
	return fmt.Sprintf("%s%s_%s", TemplateTypePrefix, containerID, templateID)
}

// IsTemplateType reports whether a tag type string is template-derived.
func IsTemplateType(tagType string) bool {
	return strings.HasPrefix(tagType, TemplateTypePrefix)
}

// embeddedTypeRe matches cvt_* id literals embedded in template data blobs.
// Both the container-scoped form (cvt_<container>_<template>) and the
// shorter gallery form (cvt_<token>) appear there.
var embeddedTypeRe = regexp.MustCompile(`cvt_[A-Za-z0-9_]+`)

// EmbeddedTypeStrings extracts every cvt_* literal from a template data
// blob, longest-first so the container-scoped form wins ties. Duplicates
// are collapsed.
func EmbeddedTypeStrings(templateData string) []string {
	matches := embeddedTypeRe.FindAllString(templateData, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	// Exact container-scoped matches sort ahead of shorter gallery ids.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// GalleryIDs returns the embedded cvt_* literals that are candidates for
// gallery-form remapping: everything except the sentinel.
func GalleryIDs(templateData string) []string {
	var out []string
	for _, id := range EmbeddedTypeStrings(templateData) {
		if id == GallerySentinel {
			continue
		}
		out = append(out, id)
	}
	return out
}
