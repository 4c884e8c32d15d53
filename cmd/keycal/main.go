package main

import "github.com/keycal/keycal/internal/cli/cmd"

func main() {
	cmd.Execute()
}
