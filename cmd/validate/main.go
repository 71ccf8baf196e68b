package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <scenario.yaml> [more scenarios...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := 0
	for _, filename := range os.Args[1:] {
		if err := validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

var (
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	titleCaser         = cases.Title(language.English)
)

func isValidScenarioFilename(name string) bool {
	// Allow 'x.' prefix for experimental scenarios
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}

func validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !isValidScenarioFilename(nameWithoutExt) {
		return fmt.Errorf("scenario filename '%s' must be lowercase snake_case (e.g., night_shift.yaml, not night-shift.yaml or NightShift.yaml)", baseName)
	}

	s, err := scenario.Load(filename)
	if err != nil {
		return err
	}

	problems := scenario.Problems(s)
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("validation errors in %s:\n%s", filename, formatProblems(s, problems))
}

// formatProblems lists problems grouped per entity, scenario-wide problems first.
func formatProblems(s *scenario.Scenario, problems map[string][]error) string {
	ids := make([]string, 0, len(problems))
	for id := range problems {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		b.WriteString("  " + entityLabel(s, id) + ":\n")
		for _, err := range problems[id] {
			b.WriteString("    - " + err.Error() + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func entityLabel(s *scenario.Scenario, id string) string {
	if id == scenario.ScenarioKey {
		return "Scenario"
	}
	if n, ok := s.NPC(id); ok {
		return fmt.Sprintf("NPC %s (%s)", id, titleCaser.String(n.Name))
	}
	if g, ok := s.Guard(id); ok {
		return fmt.Sprintf("Guard %s (%s)", id, titleCaser.String(g.DisplayName()))
	}
	return titleCaser.String(strings.ReplaceAll(id, "_", " "))
}
