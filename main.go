package main

import "github.com/vibast-solutions/ms-go-tracker/cmd"

func main() {
	cmd.Execute()
}
