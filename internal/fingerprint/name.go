package fingerprint

import (
	"path"
	"regexp"
	"strings"
)

var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// Upload tools and earlier versions of this service prefix file names with
// a date or timestamp. Each alternative must be followed by a separator.
var datePrefix = regexp.MustCompile(`^(?:\d{4}-\d{2}-\d{2}|\d{2}-\d{2}-\d{4}|\d{8}(?:_\d{6})?|\d{10,13})[-_ ]+`)

// NormalizeDisplayName reduces a client file name to the name used for
// duplicate comparison. Directory components, a trailing document
// extension and any leading date or timestamp prefixes are removed. Case
// is preserved. The function is idempotent.
func NormalizeDisplayName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	for {
		prev := name
		name = strings.TrimSpace(name)

		ext := path.Ext(name)
		if documentExtensions[strings.ToLower(ext)] && len(name) > len(ext) {
			name = strings.TrimSuffix(name, ext)
		}

		if loc := datePrefix.FindStringIndex(name); loc != nil && loc[1] < len(name) {
			name = name[loc[1]:]
		}

		if name == prev {
			return name
		}
	}
}
