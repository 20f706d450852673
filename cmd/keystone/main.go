// Command keystone is the operator CLI for the Keystone entity store.
package main

import (
	"os"

	"github.com/mesh-intelligence/keystone/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
