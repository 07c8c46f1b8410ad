package main

import "github.com/liliang-cn/ragchat/internal/cli"

func main() {
	cli.Execute()
}
