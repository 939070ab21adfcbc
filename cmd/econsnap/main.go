package main

import "econ-snapshot/internal/cli"

func main() {
	cli.Execute()
}
