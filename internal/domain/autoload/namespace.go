package autoload

import (
	"path/filepath"
	"strings"
)

// NamespaceSeparator delimits namespace segments in symbol names.
const NamespaceSeparator = `\`

// NormalizeNamespace strips leading and trailing separators and appends
// exactly one. Empty or separator-only input yields NamespaceSeparator.
func NormalizeNamespace(raw string) string {
	return strings.Trim(raw, NamespaceSeparator) + NamespaceSeparator
}

// NormalizeDirectory strips trailing forward and back slashes and appends
// exactly one platform path separator.
func NormalizeDirectory(raw string) string {
	return strings.TrimRight(raw, `/\`) + string(filepath.Separator)
}

// symbolPath converts the namespace-relative part of a symbol into a
// relative file path.
func symbolPath(relative string) string {
	return strings.ReplaceAll(relative, NamespaceSeparator, string(filepath.Separator))
}
