package main

import (
	"log"

	"github.com/peerhaven/backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
