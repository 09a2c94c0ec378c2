package main

import "github.com/KaramelBytes/worklens-cli/cmd"

func main() {
	cmd.Execute()
}
