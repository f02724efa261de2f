package wall

import (
	"regexp"
	"strings"
)

// The static analysis tier inspects code-like arguments for deny-listed
// constructs. It never executes or fully parses the argument; a match on any
// pattern refuses the plan.

type lintPattern struct {
	name string
	re   *regexp.Regexp
}

// shell command arguments (keys: cmd, command, shell, script)
var shellDenyList = []lintPattern{
	{"rm_rf_root", regexp.MustCompile(`rm\s+(-rf|-fr|-r\s+-f|-f\s+-r)\s+/`)},
	{"pipe_to_shell", regexp.MustCompile(`\|\s*(sh|bash|zsh|dash)\b`)},
	{"command_chaining", regexp.MustCompile(`(&&|\|\||;)`)},
	{"subshell", regexp.MustCompile("\\$\\(|`")},
	{"absolute_redirect", regexp.MustCompile(`>>?\s*/`)},
}

// expression arguments (key: expression)
var expressionDenyList = []lintPattern{
	{"dunder", regexp.MustCompile(`__`)},
	{"import", regexp.MustCompile(`\bimport\b`)},
	{"exec_call", regexp.MustCompile(`\bexec\s*\(`)},
	{"eval_call", regexp.MustCompile(`\beval\s*\(`)},
	{"open_call", regexp.MustCompile(`\bopen\s*\(`)},
}

// SQL arguments (keys: sql, statement); read-only tools get SELECT and SHOW
var sqlDenyList = []lintPattern{
	{"sql_mutation", regexp.MustCompile(`(?i)^\s*(insert|update|delete|drop|alter|create|truncate|grant|revoke)\b`)},
}

var (
	shellArgKeys = []string{"cmd", "command", "shell", "script"}
	sqlArgKeys   = []string{"sql", "statement"}
)

// checkLint returns the name of the first deny-listed pattern found in a
// code-like argument, or "" when the plan is clean.
func checkLint(args map[string]any) (pattern string, detail string) {
	for _, key := range shellArgKeys {
		if val, ok := args[key].(string); ok {
			if p := matchAny(shellDenyList, val); p != "" {
				return p, key + " contains deny-listed construct"
			}
		}
	}
	if val, ok := args["expression"].(string); ok {
		if p := matchAny(expressionDenyList, val); p != "" {
			return p, "expression contains deny-listed construct"
		}
	}
	for _, key := range sqlArgKeys {
		if val, ok := args[key].(string); ok {
			if p := matchAny(sqlDenyList, val); p != "" {
				return p, key + " is not a read-only statement"
			}
		}
	}
	return "", ""
}

func matchAny(patterns []lintPattern, val string) string {
	lower := strings.ToLower(val)
	for _, p := range patterns {
		if p.re.MatchString(lower) {
			return p.name
		}
	}
	return ""
}
