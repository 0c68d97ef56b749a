// Package validator validates flow files before execution.
// It parses all files upfront, reports every error instead of stopping at
// the first, and drops files that other flows only include via runFlow.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/maestro-orchestra/pkg/filter"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Flows are the top-level flows to run, in path order.
	Flows []*flow.Flow
	// SubFlows are files that are only referenced through runFlow or retry.
	SubFlows []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files and directories.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}

	var files []string
	seen := make(map[string]bool)
	for _, path := range paths {
		found, err := collectFlowFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: path, Message: err.Error()})
			continue
		}
		for _, f := range found {
			if key := absPath(f); !seen[key] {
				seen[key] = true
				files = append(files, f)
			}
		}
	}

	var parsed []*flow.Flow
	referenced := make(map[string]bool)
	for _, file := range files {
		f, err := flow.ParseFile(file)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: file, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		for _, err := range checkCommands(f.Commands, filepath.Dir(file), referenced) {
			result.Errors = append(result.Errors, &ValidationError{File: file, Message: err.Error()})
		}
		parsed = append(parsed, f)
	}

	for _, f := range parsed {
		if referenced[absPath(f.SourcePath)] {
			result.SubFlows = append(result.SubFlows, f.SourcePath)
			continue
		}
		if flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
			result.Flows = append(result.Flows, f)
		}
	}

	if len(result.Flows) == 0 && result.IsValid() {
		result.Errors = append(result.Errors, fmt.Errorf("no flows to run in %s", strings.Join(paths, ", ")))
	}
	return result
}

// collectFlowFiles returns path itself or the .yaml/.yml files below it.
// Workspace config files are not flows.
func collectFlowFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		base := strings.ToLower(filepath.Base(p))
		if base == "config.yaml" || base == "config.yml" {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}
	return files, nil
}

// checkCommands walks compiled commands, records referenced sub-flow files
// and returns selector errors.
func checkCommands(cmds []flow.Command, dir string, referenced map[string]bool) []error {
	var errs []error
	for _, cmd := range cmds {
		if sc, ok := cmd.(flow.SelectorCommand); ok {
			if err := filter.CheckCycles(sc.ElementSelector()); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", flow.Description(cmd), err))
			}
		}

		comp, ok := cmd.(flow.Composite)
		if !ok {
			continue
		}
		subDir := dir
		if file := sourceFile(cmd); file != "" {
			path := resolveFilePath(dir, file)
			referenced[absPath(path)] = true
			subDir = filepath.Dir(path)
		}
		if cfg := comp.SubConfig(); cfg != nil {
			errs = append(errs, checkCommands(cfg.OnFlowStart, subDir, referenced)...)
			errs = append(errs, checkCommands(cfg.OnFlowComplete, subDir, referenced)...)
		}
		errs = append(errs, checkCommands(comp.SubCommands(), subDir, referenced)...)
	}
	return errs
}

func sourceFile(cmd flow.Command) string {
	switch c := cmd.(type) {
	case *flow.RunFlowCommand:
		return c.SourceDescription
	case *flow.RetryCommand:
		return c.SourceDescription
	}
	return ""
}

// resolveFilePath resolves a file path relative to a base directory.
func resolveFilePath(baseDir, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(baseDir, filePath)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
