package main

import "github.com/habitly/habitd/cli"

func main() {
	cli.Execute()
}
