// Command ragchat is a retrieval-augmented chat assistant. It ingests
// documents into a vector store and answers questions grounded in them,
// from the command line or over an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragchat-go/cmd/ragchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
