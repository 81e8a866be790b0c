package main

import "price-advisor/internal/cli"

func main() {
	cli.Execute()
}
