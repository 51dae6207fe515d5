package infra

import (
	"strings"
	"unicode"
)

var idReplacer = strings.NewReplacer(".", "_", "-", "_")

// ConstructID converts a free-form resource name into a valid CDK
// construct identifier. Dots and dashes become segment boundaries,
// empty segments are dropped and each remaining segment's first letter
// is capitalized: "my-bucket.name" becomes "MyBucketName".
//
// The transform is deterministic and idempotent; an empty name yields
// an empty identifier.
func ConstructID(name string) string {
	var b strings.Builder
	for _, segment := range strings.Split(idReplacer.Replace(name), "_") {
		if segment == "" {
			continue
		}
		runes := []rune(segment)
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}
