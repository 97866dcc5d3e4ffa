package main

import "github.com/agentic-research/xscrape/cmd"

func main() {
	cmd.Execute()
}
