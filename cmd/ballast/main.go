package main

import "github.com/ballast-sh/ballast/internal/cmd"

func main() {
	cmd.Execute()
}
