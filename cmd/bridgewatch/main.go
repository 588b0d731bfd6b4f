package main

import "bridgewatch/internal/cli"

func main() {
	cli.Execute()
}
