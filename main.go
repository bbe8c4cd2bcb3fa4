package main

import "nathanbeddoewebdev/sirius/cmd"

func main() {
	cmd.Execute()
}
