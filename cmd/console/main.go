package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/stealth-engine/internal/config"
	"github.com/jwebster45206/stealth-engine/internal/logger"
)

type ConsoleConfig struct {
	ScenarioDir  string
	TickInterval time.Duration
}

func main() {
	cfg := config.Load()
	consoleCfg := &ConsoleConfig{
		ScenarioDir:  filepath.Join(cfg.DataDir, "scenarios"),
		TickInterval: cfg.TickInterval(),
	}

	// The terminal belongs to the UI; logs only go to a file when asked for.
	var out io.Writer = io.Discard
	if path := os.Getenv("CONSOLE_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	log := logger.SetupTo(out, cfg)

	var files []string
	if len(os.Args) > 1 {
		files = os.Args[1:]
	} else {
		var err error
		files, err = listScenarioFiles(consoleCfg.ScenarioDir)
		if err != nil || len(files) == 0 {
			fmt.Fprintf(os.Stderr, "No scenarios found in %s: %v\n", consoleCfg.ScenarioDir, err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(NewConsoleUI(consoleCfg, files, log), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func listScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
