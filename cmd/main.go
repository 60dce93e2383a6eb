package main

import (
	"os"
)

func main() {
	gs := newGlobalState()
	if err := gs.execute(newRootCommand(gs)); err != nil {
		os.Exit(1)
	}
}
