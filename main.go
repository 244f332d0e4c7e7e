package main

import "flakecast/cmd"

func main() {
	cmd.Execute()
}
