package main

import (
	"os"

	"github.com/Yahya305/Daaktar-Saab/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
