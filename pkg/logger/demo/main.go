package main

import (
	"log/slog"

	"github.com/soundprediction/answerrank/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    answerrank Colored Logger Demo")
	log.Info("============================================")
	log.Info("")

	log.Debug("Debug message - gray")
	log.Info("Info message - standard color")
	log.Info("Epoch finished - green!")
	log.Info("Training finished - also green!")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("")
	log.Info("Training progress stays uncoloured:")
	for step := 0; step < 3; step++ {
		log.Info("Training step", "epoch", 0, "step", step, "steps", 3, "loss", 0.05*float64(3-step))
	}
	log.Info("Epoch finished", "epoch", 0, "mean_loss", 0.1, "checkpoint", "saved_model/answer_selection_model")

	log.Info("")
	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")

	log.Info("")
	log.Info("Demo complete!")
}
