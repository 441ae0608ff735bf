// Package internal holds glue shared by the tarpath CLI subcommands.
package internal

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/tarpath/tarpath/util"
)

// NewLogger creates a logger whose prefix identifies one of n inputs.
//
// i and n are the zero-based ordinal and expected count.
func NewLogger(i, n int, name string) *log.Logger {
	prefix := fmt.Sprintf(`[%d/%d] "%s" - `, i+1, n, util.TruncateRightWithSuffix(filepath.Base(name), 30, "..."))
	return log.New(os.Stderr, prefix, 0)
}
