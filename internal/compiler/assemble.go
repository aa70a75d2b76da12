package compiler

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tanglekit/tangle/internal/metadata"
	"github.com/tanglekit/tangle/internal/types"
)

// assemble finalizes the rendered entry body. In preserve mode the entry
// file's pass-through frontmatter is re-serialized ahead of the body; an
// empty pass-through set yields no block at all. Output is NFC-normalized,
// stripped of trailing whitespace and guaranteed to end with exactly one
// newline — unless it is empty, which stays empty.
func assemble(rendered string, entry *types.SourceFile, mode MetadataMode) (string, error) {
	output := rendered
	if mode == ModePreserve && len(entry.Meta) > 0 {
		block, err := metadata.Serialize(entry.Meta)
		if err != nil {
			return "", err
		}
		output = block + output
	}

	output = strings.TrimRight(output, " \t\r\n")
	if output == "" {
		return "", nil
	}
	return norm.NFC.String(output) + "\n", nil
}
