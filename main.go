package main

import "github.com/SigNoz/storefront-api/internal/cli"

func main() {
	cli.Execute()
}
