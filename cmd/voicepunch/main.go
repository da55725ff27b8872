package main

import "github.com/saintparish4/voicepunch/internal/cli"

func main() {
	cli.Execute()
}
