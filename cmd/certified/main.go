package main

import (
	"os"

	"github.com/YouuSer/certified/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
