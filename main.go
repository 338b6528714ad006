package main

import "github.com/notargets/anisocfd/cmd"

func main() {
	cmd.Execute()
}
