package main

import "github.com/openclaw/observatory/internal/cli"

func main() {
	cli.Execute()
}
