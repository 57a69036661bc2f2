package main

import "github.com/oshokin/smart-lock/cmd/smart-lock-ctl/cmd"

func main() {
	cmd.Execute()
}
