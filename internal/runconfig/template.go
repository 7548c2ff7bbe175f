package runconfig

import (
	"fmt"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// ExpandPath expands ${name} references in a source path template, such as
// datasets/raw/${benchmark}/${split}.jsonl, against an explicit variable map.
// The process environment is never consulted. Templates that would run a
// command are rejected before expansion.
func ExpandPath(template string, variables map[string]string) (string, error) {
	trimmed := strings.TrimSpace(template)
	if trimmed == "" {
		return "", fmt.Errorf("config: empty source path")
	}
	references, reason := inspectTemplate(trimmed)
	if reason != "" {
		return "", fmt.Errorf("config: source path %q rejected: %s", template, reason)
	}

	missing := make([]string, 0)
	for _, name := range references {
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("config: source path %q references undefined variables: %s", template, strings.Join(missing, ", "))
	}

	// The expander also asks for shell internals such as IFS; those resolve
	// to empty rather than to the process environment.
	expanded, err := shell.Expand(trimmed, func(name string) string {
		return variables[name]
	})
	if err != nil {
		return "", fmt.Errorf("config: expand source path %q: %w", template, err)
	}
	return expanded, nil
}

// inspectTemplate returns the sorted parameter names a template references,
// or a reason when it contains anything beyond plain parameter expansion.
func inspectTemplate(template string) ([]string, string) {
	parser := syntax.NewParser()
	word, parseError := parser.Document(strings.NewReader(template))
	if parseError != nil {
		return nil, fmt.Sprintf("invalid template: %v", parseError)
	}

	names := map[string]bool{}
	reason := ""
	syntax.Walk(word, func(node syntax.Node) bool {
		if reason != "" {
			return false
		}
		switch typed := node.(type) {
		case *syntax.CmdSubst:
			reason = "command substitution is not allowed"
		case *syntax.ProcSubst:
			reason = "process substitution is not allowed"
		case *syntax.ArithmExp:
			reason = "arithmetic expansion is not allowed"
		case *syntax.ParamExp:
			if typed.Param != nil {
				names[typed.Param.Value] = true
			}
		}
		return true
	})
	if reason != "" {
		return nil, reason
	}
	references := make([]string, 0, len(names))
	for name := range names {
		references = append(references, name)
	}
	sort.Strings(references)
	return references, ""
}
