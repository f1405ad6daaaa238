package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/resumegate/internal/admincli"
)

func main() {
	app := admincli.NewApp(os.Stdout, os.Stderr)
	os.Exit(app.Run(context.Background(), os.Args[1:]))
}
