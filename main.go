package main

import "github.com/mabhi256/heapscope/cmd"

func main() {
	cmd.Execute()
}
