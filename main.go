package main

import "github.com/vboxwrapper/vboxwrapper/cmd"

func main() {
	cmd.Execute()
}
