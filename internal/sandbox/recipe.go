package sandbox

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Predicate decides whether a command result counts as success.
type Predicate string

const (
	// ExitZero requires a zero exit code.
	ExitZero Predicate = "exit_zero"
	// Completed accepts any result the platform returned without error.
	Completed Predicate = "completed"
)

// Met reports whether res satisfies the predicate.
func (p Predicate) Met(res ExecResult) bool {
	if p == Completed {
		return true
	}
	return res.ExitCode == 0
}

// Step is a single command in a recipe.
type Step struct {
	Name    string    `yaml:"name"`
	Command string    `yaml:"command"`
	Success Predicate `yaml:"success,omitempty"`
}

// Recipe lists the commands that turn an uploaded preview app into a running server.
//
// Install steps are alternatives tried in order until one succeeds.
// Diagnostics run after install and never gate progress.
// Launch runs asynchronously in the session.
// FailureDiagnostics run only when the server never becomes healthy.
type Recipe struct {
	Install            []Step `yaml:"install"`
	Diagnostics        []Step `yaml:"diagnostics"`
	Launch             Step   `yaml:"launch"`
	FailureDiagnostics []Step `yaml:"failure_diagnostics"`
}

// DefaultRecipe installs Flask with whichever Python tooling the image provides
// and launches the app with whichever interpreter exists.
func DefaultRecipe() Recipe {
	return Recipe{
		Install: []Step{
			{Name: "pip-python3", Command: "python3 -m pip install --no-cache-dir flask", Success: ExitZero},
			{Name: "pip-python", Command: "python -m pip install --no-cache-dir flask", Success: ExitZero},
			{Name: "pip3", Command: "pip3 install --no-cache-dir flask", Success: ExitZero},
			{Name: "pip", Command: "pip install --no-cache-dir flask", Success: ExitZero},
		},
		Diagnostics: []Step{
			{Name: "app-file", Command: "ls -l app.py || true", Success: Completed},
			{Name: "interpreters", Command: "python3 -V || true; which python3 || true; python -V || true; which python || true", Success: Completed},
		},
		Launch: Step{
			Name:    "launch",
			Command: "python3 app.py > app.log 2>&1 || python app.py >> app.log 2>&1",
			Success: Completed,
		},
		FailureDiagnostics: []Step{
			{Name: "process", Command: "ps aux | grep -E 'python(3)? app.py' | grep -v grep || true", Success: Completed},
			{Name: "log-tail", Command: "tail -n 200 app.log || true", Success: Completed},
		},
	}
}

// LoadRecipe reads a YAML recipe from path. Sections missing from the file
// keep their DefaultRecipe values.
func LoadRecipe(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recipe{}, fmt.Errorf("recipe: read %s: %w", path, err)
	}
	return ParseRecipe(data)
}

// ParseRecipe decodes a YAML recipe over DefaultRecipe and validates it.
func ParseRecipe(data []byte) (Recipe, error) {
	var file struct {
		Install            []Step `yaml:"install"`
		Diagnostics        []Step `yaml:"diagnostics"`
		Launch             *Step  `yaml:"launch"`
		FailureDiagnostics []Step `yaml:"failure_diagnostics"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Recipe{}, fmt.Errorf("recipe: decode: %w", err)
	}

	r := DefaultRecipe()
	if file.Install != nil {
		r.Install = file.Install
	}
	if file.Diagnostics != nil {
		r.Diagnostics = file.Diagnostics
	}
	if file.Launch != nil {
		r.Launch = *file.Launch
	}
	if file.FailureDiagnostics != nil {
		r.FailureDiagnostics = file.FailureDiagnostics
	}
	if err := r.normalize(); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// normalize fills default predicates and names, and rejects unusable recipes.
func (r *Recipe) normalize() error {
	if len(r.Install) == 0 {
		return errors.New("recipe: at least one install step is required")
	}
	if strings.TrimSpace(r.Launch.Command) == "" {
		return errors.New("recipe: launch command is required")
	}
	sections := []struct {
		name  string
		steps []Step
		def   Predicate
	}{
		{"install", r.Install, ExitZero},
		{"diagnostics", r.Diagnostics, Completed},
		{"launch", []Step{r.Launch}, Completed},
		{"failure_diagnostics", r.FailureDiagnostics, Completed},
	}
	for _, sec := range sections {
		for i := range sec.steps {
			s := &sec.steps[i]
			if strings.TrimSpace(s.Command) == "" {
				return fmt.Errorf("recipe: %s step %d has no command", sec.name, i+1)
			}
			switch s.Success {
			case "":
				s.Success = sec.def
			case ExitZero, Completed:
			default:
				return fmt.Errorf("recipe: %s step %d: unknown success predicate %q", sec.name, i+1, s.Success)
			}
			if s.Name == "" {
				s.Name = fmt.Sprintf("%s-%d", sec.name, i+1)
			}
		}
	}
	r.Launch = sections[2].steps[0]
	return nil
}
