package main

import "github.com/liuq/nbgrader/cmd"

func main() {
	cmd.Execute()
}
