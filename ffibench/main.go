package main

import "github.com/analogrelay/go-ffi-boundary/ffibench/cmd"

func main() {
	cmd.Execute()
}
