package main

import "github.com/graphine/graphine/cmd/graphine/cmd"

func main() {
	cmd.Execute()
}
