package main

import "github.com/devkiraa/Hang/internal/cli"

func main() {
	cli.Execute()
}
