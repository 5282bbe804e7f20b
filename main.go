package main

import "github.com/chaiso-krit/LLM-Pokemon-Red/cmd"

func main() {
	cmd.Execute()
}
