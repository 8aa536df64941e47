package media

import "strings"

// textReplacer substitutes characters that are illegal in filesystem paths.
var textReplacer = strings.NewReplacer(
	"\\", "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeText replaces filesystem-unsafe characters with underscores.
// Applied to title, uploader, and upload date before an Entry is persisted.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	return textReplacer.Replace(s)
}
