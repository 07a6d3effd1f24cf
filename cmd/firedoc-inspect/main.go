// Command firedoc-inspect is a read-only debug CLI over a local store:
// listing active targets, dumping a document's pending overlay, and running
// a query from the command line. There is no write path here by design —
// mutations go through an embedder's LocalStore, not this tool.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}

func exitOnError(err error) {
	os.Stderr.WriteString("Error: " + err.Error() + "\n")
	os.Exit(1)
}
