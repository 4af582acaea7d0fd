package preview

import (
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var avatarPalette = [...]string{
	"#e53935", "#8e24aa", "#3949ab", "#1e88e5",
	"#00897b", "#43a047", "#f4511e", "#6d4c41",
}

// Initial returns the uppercased first letter or digit of name, or "?".
func Initial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return cases.Upper(language.Und).String(string(r))
		}
	}
	return "?"
}

// InitialAvatar builds an SVG data URI showing the uploader's initial on a
// colour derived from their name.
func InitialAvatar(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	colour := avatarPalette[h.Sum32()%uint32(len(avatarPalette))]

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64">`+
		`<circle cx="32" cy="32" r="32" fill="%s"/>`+
		`<text x="50%%" y="50%%" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="28" fill="#fff">%s</text>`+
		`</svg>`, colour, Initial(name))

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
