package main

import "codeinject-go-server/internal/cli"

// 构建时通过 ldflags 注入
var version = "dev"

func main() {
	cli.Version = version
	cli.Execute()
}
