//go:build debug

// Package debug provides build-tagged diagnostic printing. Nothing in
// this package may ever receive key bytes or plaintext; callers pass
// identifiers and error strings only.
package debug

import "fmt"

const Debug = true

func Print(format string, args ...interface{}) {
	fmt.Printf("DEBUG: "+format, args...)
}
