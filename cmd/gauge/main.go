package main

import "github.com/berth-dev/gauge/internal/cli"

func main() {
	cli.Execute()
}
