package main

import (
	"fmt"
	"os"

	"github.com/ash-bergs/localtask/internal/cli"
	"github.com/ash-bergs/localtask/internal/model"
)

func main() {
	cfgPath := os.Getenv("LOCALTASK_CONFIG")
	if cfgPath == "" {
		cfgPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "localtask: %v\n", err)
		os.Exit(1)
	}

	root := cli.NewRootCmd(os.Stdout, os.Stderr, cfg)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "localtask: %v\n", err)
		os.Exit(1)
	}
}
