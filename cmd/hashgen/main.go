package main

import (
	"os"

	"github.com/dmitrijs2005/resumegate/internal/hashgen"
)

func main() {
	os.Exit(hashgen.Run(os.Args[1:], os.Stdout, os.Stderr))
}
