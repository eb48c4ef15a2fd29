package main

import "github.com/malwarebo/condopay/cmd"

func main() {
	cmd.Execute()
}
