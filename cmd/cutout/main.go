package main

import "github.com/MeKo-Tech/cutout/cmd/cutout/cmd"

func main() {
	cmd.Execute()
}
