package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"netpulse/internal/domain"
)

// JSONCodec exports the nested tree as indented JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of the output
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Export writes tree as JSON. A nil tree is written as null.
func (c *JSONCodec) Export(tree *domain.TreeNode, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(tree); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
