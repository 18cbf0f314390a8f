package main

import "github.com/aweris/dupfind/cmd/dupfind/cmd"

func main() {
	cmd.Execute()
}
