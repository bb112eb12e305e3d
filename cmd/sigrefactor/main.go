package main

import "github.com/mamaar/sigrefactor/internal/cli"

func main() {
	cli.Execute()
}
