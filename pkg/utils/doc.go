// Package utils provides small helpers shared by the answerrank packages.
//
// This package contains:
//   - Ranking helpers for scored items (rank.go)
//   - Panic recovery that turns numeric failures into errors (recovery.go)
package utils
