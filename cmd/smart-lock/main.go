package main

import "github.com/oshokin/smart-lock/cmd/smart-lock/cmd"

func main() {
	cmd.Execute()
}
