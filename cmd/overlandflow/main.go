package main

import "github.com/oshokin/overlandflow/cmd/overlandflow/cmd"

func main() {
	cmd.Execute()
}
