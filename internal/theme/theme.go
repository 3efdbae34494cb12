// Package theme holds the light/dark display preference.
package theme

import "strings"

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Parse falls back to Light for anything that is not "dark".
func Parse(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(Dark)) {
		return Dark
	}
	return Light
}

func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

func (t Theme) String() string {
	return string(t)
}
