package main

import "github.com/zms-erp/ledgertree/internal/cli"

func main() {
	cli.Execute()
}
