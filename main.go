package main

import "github.com/ayurlink/clinic-management/cmd"

func main() {
	cmd.Execute()
}
