package foodlog

import (
	"fmt"
	"io"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump writes a labelled, deterministic dump of v to w, prefixed with the
// caller's location. Used for DEBUG=true startup dumps.
func Dump(w io.Writer, label string, v ...any) {
	_, file, line, _ := runtime.Caller(1)
	fmt.Fprintf(w, "%s:%d: %s\n", file, line, label)
	dumpConfig.Fdump(w, v...)
}
