// Command vecgate serves batched k-NN search over a pre-built flat index.
//
// Usage:
//
//	vecgate serve -i s3://bucket/index.vgf
//	vecgate inspect ./index.vgf
//	vecgate version
//
// Configuration is read from flags, VECGATE_* environment variables and an
// optional config file, in that order of precedence.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
