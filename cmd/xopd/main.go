package main

import (
	"github.com/sirosfoundation/go-xop/cmd"
)

// version will be set during build
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
