// Copyright © 2018 One Concern

package main

import "github.com/oneconcern/fileref/cmd/fileref/cmd"

func main() {
	cmd.Execute()
}
