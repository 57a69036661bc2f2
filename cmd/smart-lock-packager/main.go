package main

import "github.com/oshokin/smart-lock/cmd/smart-lock-packager/cmd"

func main() {
	cmd.Execute()
}
