// Package politeguard classifies short texts into politeness levels using a
// local ONNX classifier.
//
// Quick start:
//
//	a, err := politeguard.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	resp, _ := a.Analyze(ctx, "Thank you so much for your help!")
//	fmt.Println(resp.Level, resp.Description)
//
// Shared resources (vocabulary, model location, ONNX Runtime environment) are
// initialized once per process on first use; call EnsureReady to do it
// eagerly. Each Analyzer owns its own inference session and is safe for
// concurrent use until Close.
package politeguard
