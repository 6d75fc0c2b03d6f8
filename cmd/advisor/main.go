// Copyright 2025 Emre Kaya
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command advisor runs the agent-pipeline engine.
//
// Usage:
//
//	advisor serve --config configs/advisor.yaml
//	advisor run --config configs/advisor.yaml "How should I invest 10,000 EUR?"
//	advisor validate --config configs/advisor.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/emrekaya/advisor"
	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/runtime"
	"github.com/emrekaya/advisor/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Run      RunCmd      `cmd:"" help:"Execute the pipeline once and print the report."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"configs/advisor.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(advisor.GetVersion().String())
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return server.New(cfg, rt).Start(ctx)
}

// RunCmd executes the pipeline once for a query given on the command line.
type RunCmd struct {
	Query string `arg:"" help:"The query to run the pipeline for."`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	timeout := time.Duration(cfg.Server.TimeoutSeconds * float64(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := rt.Run(ctx, c.Query)
	if err != nil {
		return err
	}

	fmt.Println(result)
	return nil
}

// ValidateCmd loads and validates a configuration file, including graph
// validation, without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	// Building the runtime exercises graph validation (dependencies, cycles,
	// agent resolution) on top of structural validation.
	rt, err := runtime.New(cfg)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration is valid: %d agents, %d tasks, terminal task(s): %v\n",
		len(cfg.Agents), rt.Graph().Len(), rt.Graph().Terminals())
	return nil
}

func main() {
	// Best-effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("advisor"),
		kong.Description("Declarative agent-pipeline engine."),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := kctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cleanup()
		os.Exit(1)
	}
}
