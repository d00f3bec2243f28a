//go:build !linux

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "proot-loader: only Linux is supported")
	os.Exit(1)
}
