package model

import (
	"strconv"
	"strings"
	"time"
)

// Granularity is the bar interval. Only one minute is stored today.
type Granularity time.Duration

// Minute is the granularity of every stored series.
const Minute = Granularity(time.Minute)

// Duration returns g as a time.Duration.
func (g Granularity) Duration() time.Duration { return time.Duration(g) }

// Millis returns g in milliseconds.
func (g Granularity) Millis() int64 { return time.Duration(g).Milliseconds() }

// Suffix is the file-name suffix for g, e.g. "1m".
func (g Granularity) Suffix() string {
	d := time.Duration(g)
	switch {
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	default:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	}
}

// Symbol categories; each maps to a sub-directory of the data dir.
const (
	CategoryFX      = "fx"
	CategoryIndices = "indices"
)

// Symbol is a canonical instrument with the aliases a quote source may list it under.
type Symbol struct {
	Name     string   `yaml:"name" json:"name"`
	Aliases  []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Category string   `yaml:"category,omitempty" json:"category,omitempty"`
}

// Candidates returns the names to try against a source, canonical name first, without duplicates.
func (s Symbol) Candidates() []string {
	out := make([]string, 0, len(s.Aliases)+1)
	seen := make(map[string]bool, len(s.Aliases)+1)
	for _, n := range append([]string{s.Name}, s.Aliases...) {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Lower returns the lowercase canonical name used in file names.
func (s Symbol) Lower() string {
	return strings.ToLower(s.Name)
}
