package main

import "github.com/tanq16/swarm/cmd"

func main() {
	cmd.Execute()
}
