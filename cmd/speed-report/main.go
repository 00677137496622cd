package main

import "github.com/oshokin/alert-relay/cmd/speed-report/cmd"

func main() {
	cmd.Execute()
}
