package main

import "github.com/picis-sec/picis/cmd/picis/cmd"

func main() {
	cmd.Execute()
}
