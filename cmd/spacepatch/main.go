package main

import "github.com/spacepatch/spacepatch/internal/cmd"

func main() {
	cmd.Execute()
}
