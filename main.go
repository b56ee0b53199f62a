// The main package for the harvester executable.
package main

import (
	"github.com/gradworks/gradcafe-harvester/cmd"
)

func main() {
	cmd.Execute()
}
