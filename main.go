package main

import "github.com/iksnae/jarvis-console/cmd"

func main() {
	cmd.Execute()
}
