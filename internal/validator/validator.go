package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja/parser"
)

// ErrorType classifies a rejection so callers can route remediation
// guidance (editor diagnostics vs. hard denials vs. "simplify").
type ErrorType string

const (
	ErrorSyntax     ErrorType = "syntax"
	ErrorSecurity   ErrorType = "security"
	ErrorComplexity ErrorType = "complexity"
	ErrorLength     ErrorType = "length"
	ErrorPattern    ErrorType = "pattern"
)

// Result is the outcome of validating one script. Error is set iff the
// script is invalid; Line and Column are 1-based and best-effort.
type Result struct {
	Valid     bool      `json:"valid"`
	Error     string    `json:"error,omitempty"`
	Line      int       `json:"line,omitempty"`
	Column    int       `json:"column,omitempty"`
	ErrorType ErrorType `json:"errorType,omitempty"`
}

// Config holds validator limits and rule tables. Zero values fall back
// to defaults at construction time.
type Config struct {
	MaxScriptLength    int
	MaxStatements      int
	MaxStringLiteral   int
	AllowedModules     []string
	AllowedPrefixes    []string
	BlockedIdentifiers []string

	// ExtraPatterns are deployment-specific lexical rules layered after
	// the built-in red-flag scan, typically loaded from a rules file.
	ExtraPatterns []ExtraPattern
}

// ExtraPattern is a custom lexical rule from a rules file.
type ExtraPattern struct {
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// DefaultConfig returns the production rule configuration.
func DefaultConfig() Config {
	return Config{
		MaxScriptLength:  50 * 1024,
		MaxStatements:    1000,
		MaxStringLiteral: 1000,
	}
}

// Validator rejects scripts that are unsafe or malformed, without ever
// executing them. All rule tables are immutable after New, so a single
// Validator is safe for concurrent use.
type Validator struct {
	cfg        Config
	rules      []patternRule
	heuristics []patternRule
	allowed    map[string]struct{}
	prefixes   []string
	blocked    map[string]struct{}
}

// New builds a validator from cfg, filling unset limits and tables with
// the defaults.
func New(cfg Config) (*Validator, error) {
	if cfg.MaxScriptLength <= 0 {
		cfg.MaxScriptLength = DefaultConfig().MaxScriptLength
	}
	if cfg.MaxStatements <= 0 {
		cfg.MaxStatements = DefaultConfig().MaxStatements
	}
	if cfg.MaxStringLiteral <= 0 {
		cfg.MaxStringLiteral = DefaultConfig().MaxStringLiteral
	}
	if len(cfg.AllowedModules) == 0 {
		cfg.AllowedModules = defaultAllowedModules()
	}
	if len(cfg.AllowedPrefixes) == 0 {
		cfg.AllowedPrefixes = defaultAllowedPrefixes()
	}
	if len(cfg.BlockedIdentifiers) == 0 {
		cfg.BlockedIdentifiers = defaultBlockedIdentifiers()
	}

	v := &Validator{
		cfg:        cfg,
		rules:      redFlagRules(),
		heuristics: obfuscationRules(),
		allowed:    make(map[string]struct{}, len(cfg.AllowedModules)),
		prefixes:   cfg.AllowedPrefixes,
		blocked:    make(map[string]struct{}, len(cfg.BlockedIdentifiers)),
	}
	for _, m := range cfg.AllowedModules {
		v.allowed[m] = struct{}{}
	}
	for _, id := range cfg.BlockedIdentifiers {
		v.blocked[id] = struct{}{}
	}
	for _, p := range cfg.ExtraPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid extra pattern %q: %w", p.Pattern, err)
		}
		v.rules = append(v.rules, patternRule{re: re, message: p.Message, errType: ErrorPattern})
	}
	return v, nil
}

// Validate runs the full pipeline over code. The first failing rule is
// terminal; a clean pass through every phase yields Valid == true.
func (v *Validator) Validate(code string) Result {
	// Phase 1: basic admissibility.
	if strings.TrimSpace(code) == "" {
		return Result{Error: "script is empty", ErrorType: ErrorSyntax}
	}
	if len(code) > v.cfg.MaxScriptLength {
		return Result{
			Error:     fmt.Sprintf("script exceeds the maximum length of %d bytes", v.cfg.MaxScriptLength),
			ErrorType: ErrorLength,
		}
	}

	// Phase 2: lexical red-flag scan, plus any rules-file patterns.
	if r, bad := v.scan(code, v.rules); bad {
		return r
	}

	// Phase 3: obfuscation heuristics.
	if r, bad := v.scan(code, v.heuristics); bad {
		return r
	}

	// Phase 3b: import discipline for static and dynamic import forms.
	// The runner loads modules CommonJS-style, so import declarations are
	// checked against the allow-list here and desugared to require()
	// before the structural parse.
	desugared, r, bad := v.desugarImports(code)
	if bad {
		return r
	}

	// Phase 4: structural parse.
	prog, err := parser.ParseFile(nil, "", desugared, 0)
	if err != nil {
		if list, ok := err.(parser.ErrorList); ok && len(list) > 0 {
			first := list[0]
			return Result{
				Error:     first.Message,
				Line:      first.Position.Line,
				Column:    first.Position.Column,
				ErrorType: ErrorSyntax,
			}
		}
		return Result{Error: err.Error(), ErrorType: ErrorSyntax}
	}

	// Phase 5: whole-tree semantic walk.
	if r, bad := v.walk(desugared, prog); bad {
		return r
	}

	return Result{Valid: true}
}

// scan applies rules in order and reports the first match with its
// 1-based line number.
func (v *Validator) scan(code string, rules []patternRule) (Result, bool) {
	for _, rule := range rules {
		loc := rule.re.FindStringIndex(code)
		if loc == nil {
			continue
		}
		line, col := lineCol(code, loc[0])
		return Result{
			Error:     rule.message,
			Line:      line,
			Column:    col,
			ErrorType: rule.errType,
		}, true
	}
	return Result{}, false
}

// moduleAllowed reports whether name is vetted for script use.
func (v *Validator) moduleAllowed(name string) bool {
	if _, ok := v.allowed[name]; ok {
		return true
	}
	for _, p := range v.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// lineCol converts a 0-based byte offset into 1-based line and column.
func lineCol(src string, offset int) (int, int) {
	if offset > len(src) {
		offset = len(src)
	}
	line := 1 + strings.Count(src[:offset], "\n")
	col := offset - strings.LastIndex(src[:offset], "\n")
	return line, col
}
