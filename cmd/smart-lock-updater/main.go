package main

import "github.com/oshokin/smart-lock/cmd/smart-lock-updater/cmd"

func main() {
	cmd.Execute()
}
