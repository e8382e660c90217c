package main

import "github.com/forPelevin/adcut/internal/cli"

func main() {
	cli.Main()
}
