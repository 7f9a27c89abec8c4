package main

import "github.com/kozaktomas/face-scanner/cmd"

func main() {
	cmd.Execute()
}
