// ./main.go
package main

import (
	"github.com/0xjcr/chrome-osint-extension/cmd"
)

func main() {
	// All command-line parsing, configuration, and execution lives in cmd.
	cmd.Execute()
}
