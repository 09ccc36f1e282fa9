// Copyright 2025 Zyros Dev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/zyros-dev/pgx-lower-api/cnf"
	"github.com/zyros-dev/pgx-lower-api/engine"
)

func ensureConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(homeDir, ".config", "pgx-lower-api")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

func runActionREPL(conf *cnf.Conf, engineName string) {
	eng, err := buildEngine(conf, engineName)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorGeneralFailure)
	}
	defer eng.Disconnect(context.Background())

	runner := engine.NewRunner(engine.NewGate(conf.GateTimeout()))

	titleColor := color.New(color.FgHiMagenta).SprintFunc()
	dimColor := color.New(color.FgHiBlack).SprintFunc()
	redColor := color.New(color.FgRed).SprintFunc()

	fmt.Println("pgx-lower query console")
	fmt.Println("Commands:")
	fmt.Println("  <SQL query>  - execute a read-only query")
	fmt.Println("  exit         - leave the console")
	fmt.Printf("\nTarget engine: %s\n\n", engineName)

	var historyFile string
	historyDir, err := ensureConfigDir()
	if err != nil {
		log.Error().Err(err).Msg("failed to determine user config directory - falling back to session-local history")

	} else {
		historyFile = filepath.Join(historyDir, "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: historyFile,
	})
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorREPLReading)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue

		} else if err == io.EOF {
			break
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" {
			fmt.Println("Goodbye!")
			break
		}

		result, err := runner.Run(context.Background(), eng, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s\n", redColor("ERR:"), err)
			continue
		}
		fmt.Printf("%s (total %.2f ms)\n", result.Version, result.LatencyMs)
		for _, out := range result.Outputs {
			fmt.Printf("\n%s", titleColor(out.Title))
			if out.Latency != nil {
				fmt.Printf(" %s", dimColor(fmt.Sprintf("(%.2f ms)", *out.Latency)))
			}
			fmt.Printf("\n%s\n", out.Content)
		}
	}
}
