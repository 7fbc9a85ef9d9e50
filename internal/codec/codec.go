// Package codec renders the hierarchy in export formats.
package codec

import (
	"io"

	"netpulse/internal/domain"
)

// Exporter writes a hierarchy snapshot in one format
type Exporter interface {
	Export(tree *domain.TreeNode, w io.Writer) error
	Format() string
	ContentType() string
}

// ForFormat returns the exporter registered for format
func ForFormat(format string) (Exporter, bool) {
	switch format {
	case "json":
		return NewJSONCodec(), true
	case "yaml", "yml":
		return NewYAMLCodec(), true
	}
	return nil, false
}
