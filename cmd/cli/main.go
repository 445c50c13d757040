package main

import "campuscare/cmd/cli/command"

func main() {
	command.Execute()
}
