package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/lk2023060901/echo-garden-go/application"
)

func main() {
	if err := application.New().Run(); err != nil {
		fmt.Fprintf(os.Stderr, "echod: %v\n", err)
		os.Exit(1)
	}
}
