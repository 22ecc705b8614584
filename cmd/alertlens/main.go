package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"alertlens/internal/llm"
)

func main() {
	if err := Execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var be *llm.BackendError
		if errors.As(err, &be) {
			for _, s := range be.Suggestions() {
				fmt.Fprintf(os.Stderr, "  - %s\n", s)
			}
		}
		os.Exit(1)
	}
}
