package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/featureboard/featureboard/internal/lanes"
)

var errFormAborted = errors.New("form aborted")

// runAddForm collects a new feature interactively. Steps are entered one
// per line.
func runAddForm() (lanes.NewFeature, error) {
	var (
		in        lanes.NewFeature
		stepsText string
		confirm   = true
	)

	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Category").
				Description("Area of the product (required)").
				Placeholder("e.g., auth").
				Value(&in.Category).
				Validate(required("category")),

			huh.NewInput().
				Title("Name").
				Description("Short name of the feature (required)").
				Placeholder("e.g., Login page").
				Value(&in.Name).
				Validate(required("name")),

			huh.NewText().
				Title("Description").
				Description("What the feature does").
				CharLimit(5000).
				Value(&in.Description),
		),

		huh.NewGroup(
			huh.NewText().
				Title("Steps").
				Description("Test steps, one per line").
				Placeholder("Open /login\nSubmit valid credentials\nSee the dashboard").
				CharLimit(10000).
				Value(&stepsText),

			huh.NewConfirm().
				Title("Add this feature?").
				Affirmative("Add").
				Negative("Cancel").
				Value(&confirm),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return in, errFormAborted
		}
		return in, fmt.Errorf("form error: %w", err)
	}
	if !confirm {
		return in, errFormAborted
	}

	in.Category = strings.TrimSpace(in.Category)
	in.Name = strings.TrimSpace(in.Name)
	in.Steps = splitSteps(stepsText)
	return in, nil
}

// splitSteps turns a newline-separated block into trimmed, non-empty steps.
func splitSteps(text string) []string {
	steps := []string{}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}
