package main

import "github.com/vietddude/ledgerscan/internal/cli"

func main() {
	cli.Execute()
}
