package main

import (
	"log"

	"github.com/thiagokokada/ccview-go/cmd"
)

func main() {
	log.SetFlags(0)
	if err := cmd.Run(); err != nil {
		log.Fatalf("ccview: %v", err)
	}
}
