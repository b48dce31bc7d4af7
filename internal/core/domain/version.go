package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a document revision number kept as a structured triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// InitialVersion builds the first version of a document from caller-supplied
// components. A non-positive major falls back to 1; negative minor or patch
// components fall back to 0.
func InitialVersion(major, minor, patch int) Version {
	if major <= 0 {
		major = 1
	}
	if minor < 0 {
		minor = 0
	}
	if patch < 0 {
		patch = 0
	}
	return Version{Major: major, Minor: minor, Patch: patch}
}

// ParseVersion reads a dotted "M.m.p" string. It never fails: missing or
// malformed components read as 0, and an empty string reads as 1.0.0.
func ParseVersion(raw string) Version {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Version{Major: 1}
	}
	parts := strings.SplitN(raw, ".", 3)
	component := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return Version{Major: component(0), Minor: component(1), Patch: component(2)}
}

// Next bumps the minor component and resets patch; major is preserved.
func (v Version) Next() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// NextVersion returns the revision that follows current, e.g. "1.2.3" -> "1.3.0".
func NextVersion(current string) string {
	return ParseVersion(current).Next().String()
}
