// Package answerrank trains and evaluates a neural answer selection model.
//
// The model scores how well a candidate answer matches a question. Both are
// embedded, encoded by a shared bidirectional LSTM, reduced to a fixed-size
// vector by 1-D convolutions of several widths with global max-pooling and
// tanh, and compared with cosine similarity. Training uses a pairwise hinge
// loss: a correct answer must score at least a margin above a randomly
// sampled wrong one.
//
// # Basic Usage
//
// Load the configuration and create a client:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := answerrank.NewClient(cfg, slog.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Training
//
// Train reads the training split from the configured source and writes a
// checkpoint after every epoch:
//
//	summary, err := client.Train(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("final loss %.4f after %d steps\n", summary.FinalLoss, summary.Steps)
//
// # Evaluation
//
// Evaluate restores the checkpoint and ranks the candidates of every
// question in the evaluation split:
//
//	result, err := client.Evaluate(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("P@1 %.3f MRR %.3f\n", result.PrecisionAt1, result.MRR)
//
// # Data Sources
//
// A corpus is a vocabulary (id → word), an answer pool (id → token ids) and
// one record list per split. It is read from JSON or YAML files in a
// directory, or from a badger database filled with Client.Import.
package answerrank
