package main

import (
	"os"

	"github.com/soundprediction/answerrank/cmd/answerrank"
)

func main() {
	if err := answerrank.Execute(); err != nil {
		os.Exit(1)
	}
}
