package main

import "github.com/SJBM1876/Musicians-and-Bands-Database/cmd/bandsdb/commands"

var version = "dev"

func main() {
	commands.SetVersion(version)
	commands.Execute()
}
