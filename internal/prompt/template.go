// Package prompt renders the LLM prompt templates.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	varRe      = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenRe   = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
	ifCloseStr = "{{/if}}"
)

// Vars is a map of variable names to values for template rendering.
type Vars map[string]string

// Render expands a template string with the given variables.
// {{variable}} is replaced with its value. Missing required variables cause an error.
// {{#if variable}}...{{/if}} blocks are included only if the variable is non-empty.
func Render(tmpl string, vars Vars) (string, error) {
	// Process conditional blocks iteratively, innermost first
	result, err := processConditionals(tmpl, vars)
	if err != nil {
		return "", err
	}

	// Second pass: expand variables, collecting any missing ones
	var missing []string
	expanded := varRe.ReplaceAllStringFunc(result, func(match string) string {
		m := varRe.FindStringSubmatch(match)
		if m == nil {
			return match
		}
		varName := m[1]
		if val, ok := vars[varName]; ok {
			return val
		}
		missing = append(missing, varName)
		return match // leave placeholder for error reporting
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return expanded, nil
}

// processConditionals handles {{#if var}}...{{/if}} blocks, supporting nesting.
// It processes innermost blocks first by finding the last {{#if before each {{/if}}.
func processConditionals(tmpl string, vars Vars) (string, error) {
	result := tmpl
	for {
		// Find the first {{/if}}
		closeIdx := strings.Index(result, ifCloseStr)
		if closeIdx == -1 {
			break
		}

		// Find the last {{#if ...}} before this {{/if}}; that's the innermost
		prefix := result[:closeIdx]
		openLocs := ifOpenRe.FindAllStringIndex(prefix, -1)
		if openLocs == nil {
			return "", fmt.Errorf("dangling {{/if}} without matching {{#if}}")
		}

		// Take the last (innermost) opening tag
		lastOpen := openLocs[len(openLocs)-1]
		openStart := lastOpen[0]
		openEnd := lastOpen[1]

		// Extract variable name from the opening tag
		openTag := prefix[openStart:openEnd]
		m := ifOpenRe.FindStringSubmatch(openTag)
		if m == nil {
			return "", fmt.Errorf("failed to parse conditional tag: %s", openTag)
		}
		varName := m[1]

		// Extract body between opening and closing tags
		body := result[openEnd:closeIdx]
		closeEnd := closeIdx + len(ifCloseStr)

		// Evaluate: include body if variable is set and non-empty
		var replacement string
		if val, ok := vars[varName]; ok && val != "" {
			replacement = body
		}

		result = result[:openStart] + replacement + result[closeEnd:]
	}

	// Check for unclosed conditional blocks
	if ifOpenRe.MatchString(result) {
		loc := ifOpenRe.FindString(result)
		return "", fmt.Errorf("unclosed conditional block: %s", loc)
	}

	return result, nil
}

// OverrideDir is where a repository may place its own prompt templates,
// relative to the repository root.
const OverrideDir = ".afterburner/prompts"

// Load returns the named template. A file under OverrideDir in repoPath
// takes precedence over the built-in template of the same name.
func Load(name, repoPath string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	if repoPath != "" {
		if data, err := os.ReadFile(filepath.Join(repoPath, OverrideDir, name)); err == nil {
			return string(data), nil
		}
	}
	tmpl, ok := builtinTemplates[name]
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Build loads and renders a template in one step.
func Build(name, repoPath string, vars Vars) (string, error) {
	tmpl, err := Load(name, repoPath)
	if err != nil {
		return "", err
	}
	return Render(tmpl, vars)
}
