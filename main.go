package main

import "github.com/troxellophilus/baseball-clerk/cmd"

func main() {
	cmd.Execute()
}
