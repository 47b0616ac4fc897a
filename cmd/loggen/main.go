package main

import (
	"os"

	"github.com/hugolhafner/logstream/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewLoggenCommand()))
}
