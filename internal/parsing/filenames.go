package parsing

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename removes characters that are illegal in file names.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) || r < 0x20 {
			return '_'
		}
		return r
	}, name)

	switch name {
	case "", ".", "..":
		return ""
	}
	return name
}
