package main

import "github.com/Togather-Foundation/tsukuyomi/cmd/server/cmd"

func main() {
	cmd.Execute()
}
