package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// The automation runner loads modules CommonJS-style, so ES import
// declarations are recognized lexically, checked against the allow-list,
// and rewritten line-for-line into require() form before parsing. The
// rewrite preserves line numbers so later diagnostics stay accurate.
var (
	importNamespaceRe = regexp.MustCompile(`^(\s*)import\s+\*\s+as\s+([A-Za-z_$][\w$]*)\s+from\s+['"]([^'"]+)['"];?\s*$`)
	importDefaultRe   = regexp.MustCompile(`^(\s*)import\s+([A-Za-z_$][\w$]*)\s+from\s+['"]([^'"]+)['"];?\s*$`)
	importBareRe      = regexp.MustCompile(`^(\s*)import\s+['"]([^'"]+)['"];?\s*$`)

	// Named import bindings may span lines, so this one matches against
	// the whole source rather than line by line.
	importNamedRe = regexp.MustCompile(`(?m)^([ \t]*)import\s+(\{[^}]*\})\s*from\s*['"]([^'"]+)['"];?[ \t]*$`)

	dynamicImportLiteralRe = regexp.MustCompile(`\bimport[ \t]*\([ \t]*['"]([^'"]+)['"]`)
	dynamicImportRe        = regexp.MustCompile(`\bimport[ \t]*\(`)
	asBindingRe            = regexp.MustCompile(`(\w+)\s+as\s+(\w+)`)
)

// desugarImports enforces the module allow-list on static and dynamic
// import forms and returns a require()-based equivalent of the script.
// The returned Result is meaningful only when the bool is true.
func (v *Validator) desugarImports(code string) (string, Result, bool) {
	// Named imports first, over the whole source: the binding list may
	// span lines, and the bindings keep their own newlines so the
	// rewritten declaration occupies exactly the same lines.
	var b strings.Builder
	last := 0
	for _, m := range importNamedRe.FindAllStringSubmatchIndex(code, -1) {
		name := code[m[6]:m[7]]
		if !v.moduleAllowed(name) {
			line, col := lineCol(code, m[0]+(m[3]-m[2]))
			return "", Result{
				Error:     fmt.Sprintf("module %q is not in the allowed module list", name),
				Line:      line,
				Column:    col,
				ErrorType: ErrorSecurity,
			}, true
		}
		bindings := asBindingRe.ReplaceAllString(code[m[4]:m[5]], "$1: $2")
		b.WriteString(code[last:m[0]])
		b.WriteString(fmt.Sprintf(`%sconst %s = require("%s");`, code[m[2]:m[3]], bindings, name))
		last = m[1]
	}
	b.WriteString(code[last:])
	code = b.String()

	lines := strings.Split(code, "\n")
	for i, line := range lines {
		var name, rewritten string
		switch {
		case importNamespaceRe.MatchString(line):
			m := importNamespaceRe.FindStringSubmatch(line)
			name = m[3]
			rewritten = fmt.Sprintf(`%sconst %s = require("%s");`, m[1], m[2], m[3])
		case importDefaultRe.MatchString(line):
			m := importDefaultRe.FindStringSubmatch(line)
			name = m[3]
			rewritten = fmt.Sprintf(`%sconst %s = require("%s");`, m[1], m[2], m[3])
		case importBareRe.MatchString(line):
			m := importBareRe.FindStringSubmatch(line)
			name = m[2]
			rewritten = fmt.Sprintf(`%srequire("%s");`, m[1], m[2])
		default:
			continue
		}

		if !v.moduleAllowed(name) {
			return "", Result{
				Error:     fmt.Sprintf("module %q is not in the allowed module list", name),
				Line:      i + 1,
				Column:    strings.Index(line, "import") + 1,
				ErrorType: ErrorSecurity,
			}, true
		}
		lines[i] = rewritten
	}
	out := strings.Join(lines, "\n")

	// Dynamic import(): literal names are checked here, then the call is
	// rewritten to require() so the AST walk applies the same arity and
	// literal discipline to whatever remains.
	for _, m := range dynamicImportLiteralRe.FindAllStringSubmatchIndex(out, -1) {
		name := out[m[2]:m[3]]
		if !v.moduleAllowed(name) {
			line, col := lineCol(out, m[0])
			return "", Result{
				Error:     fmt.Sprintf("module %q is not in the allowed module list", name),
				Line:      line,
				Column:    col,
				ErrorType: ErrorSecurity,
			}, true
		}
	}
	out = dynamicImportRe.ReplaceAllString(out, "require(")

	return out, Result{}, false
}
