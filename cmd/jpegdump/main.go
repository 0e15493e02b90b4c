// Command jpegdump is a thin reference consumer of the jpegcodec library:
// it decodes a JPEG file and writes the result as a PNG. It exists purely
// to exercise the library from outside its own package; none of its
// behavior (flag parsing, PNG encoding, logging) is part of the core
// decoder's contract.
package main

import (
	"os"

	"github.com/kdriscoll-eng/jpegcodec/cmd/jpegdump/cmd"
)

func main() {
	if err := cmd.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
