// Package main is the entry point of the rocache command-line tool.
package main

import (
	"github.com/sarchlab/rocache/rocache/cmd"
)

func main() {
	cmd.Execute()
}
