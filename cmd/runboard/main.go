package main

import (
	"os"

	"github.com/runboardhq/runboard"
)

func main() {
	os.Exit(runboard.RunMain())
}
