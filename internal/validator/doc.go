// Package validator decides whether user-submitted automation scripts
// are safe to hand to the platform runner, without executing them.
//
// The model is default-deny: every capability a script wants (module
// access, global identifiers) must be explicitly allow-listed, and
// everything else is rejected by construction.
//
// Validation is a short-circuit pipeline:
//
//  1. Basic admissibility (empty input, maximum length)
//  2. Lexical red-flag scan (ordered regex rules, first match wins)
//  3. Obfuscation heuristics (escape runs, char-code construction)
//  4. Import discipline (allow-listed modules only, literal names)
//  5. Structural parse via goja
//  6. Iterative whole-tree walk (statement budget, require() rules,
//     blocked identifiers, oversized string literals)
//
// The two-layer design exists so obviously malicious input is rejected
// cheaply before paying for a full parse; this runs on every script
// submission. A Validator is immutable after New and safe for
// concurrent use.
//
// Example Usage:
//
//	v, _ := validator.New(validator.DefaultConfig())
//	result := v.Validate(script)
//	if !result.Valid {
//	    log.Warn("rejected", result.ErrorType, result.Error)
//	}
package validator
