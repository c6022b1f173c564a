package main

import "github.com/naka-gawa/pr-stats/cmd"

func main() {
	cmd.Execute()
}
