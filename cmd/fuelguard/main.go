package main

import "github.com/ogulcanaydogan/fuel-guardian/internal/cli"

func main() {
	cli.Execute()
}
