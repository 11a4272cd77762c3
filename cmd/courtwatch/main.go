package main

import "github.com/user/court-watch/internal/cli"

func main() {
	cli.Execute()
}
