package main

import "github.com/smallbiznis/invoicedoc/internal/cli"

func main() {
	cli.Execute()
}
