package main

import "github.com/theirongolddev/restock/cmd"

func main() {
	cmd.Execute()
}
