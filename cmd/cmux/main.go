// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/cmux/main.go
// Summary: cmux entry point: terminal checks, logging, config, engine start.
// Usage: Run `cmux` from an interactive terminal.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/pweiskircher/cmux/config"
	"github.com/pweiskircher/cmux/mux"
	termapp "github.com/pweiskircher/cmux/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("cmux", flag.ContinueOnError)
	shellFlag := fs.String("shell", "", "Shell command for new panes (default: config, then $SHELL)")
	historyFlag := fs.String("history", "", "Scrollback database path (default: config)")
	noHistory := fs.Bool("no-history", false, "Disable scrollback indexing")
	logFlag := fs.String("log", "", "Log file path (default: alongside the config)")
	titleFlag := fs.String("title", "cmux", "Title of the initial window")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("cmux must run on an interactive terminal")
	}

	if err := setupLogging(*logFlag); err != nil {
		return err
	}
	if err := config.Err(); err != nil {
		log.Printf("main: config load: %v", err)
	}

	shell := *shellFlag
	if shell == "" {
		shell = config.System().GetString("shell", "command", "/bin/sh")
	}

	var history *termapp.History
	if !*noHistory && config.System().GetBool("history", "enabled", true) {
		path := *historyFlag
		if path == "" {
			var err error
			path, err = config.HistoryPath()
			if err != nil {
				return fmt.Errorf("resolve history path: %w", err)
			}
		}
		var err error
		history, err = termapp.OpenHistory(path)
		if err != nil {
			log.Printf("main: scrollback index unavailable: %v", err)
		} else {
			defer history.Close()
		}
	}

	desktop, err := mux.NewDesktop(termapp.NewShellFactory(shell, history))
	if err != nil {
		return fmt.Errorf("init desktop: %w", err)
	}
	defer desktop.Close()

	desktop.NewWindow(*titleFlag)

	log.Printf("main: cmux started, shell=%q", shell)
	return desktop.Run()
}

func setupLogging(path string) error {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return err
		}
		path = filepath.Join(configDir, "cmux", "cmux.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	log.SetOutput(logFile)
	return nil
}
