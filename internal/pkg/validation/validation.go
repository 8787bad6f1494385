package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// NIC: dashed 12345-1234567-1 or the same 13 digits without separators.
var nicRe = regexp.MustCompile(`^(\d{5}-\d{7}-\d|\d{13})$`)

// Person names: letters, spaces, dots, hyphens, apostrophes.
var personNameRe = regexp.MustCompile(`^[\p{L}\s.\-']+$`)

const (
	MaxRemarksLength = 1000
	MaxNameLength    = 100
)

func IsValidNIC(nic string) bool {
	return nicRe.MatchString(nic)
}

func IsValidPersonName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && utf8.RuneCountInString(name) <= MaxNameLength && personNameRe.MatchString(name)
}

// WithinLength counts runes, not bytes.
func WithinLength(s string, max int) bool {
	return utf8.RuneCountInString(s) <= max
}

func IsValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func IsValidLongitude(lon float64) bool {
	return lon >= -180 && lon <= 180
}
