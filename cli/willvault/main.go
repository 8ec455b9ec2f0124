package main

import "github.com/everwill/willvault/cli/willvault/cmd"

func main() {
	cmd.Execute()
}
