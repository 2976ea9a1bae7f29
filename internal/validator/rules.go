package validator

import "regexp"

// patternRule pairs a compiled pattern with the reason reported when it
// matches. Rules are evaluated in order; the first match wins.
type patternRule struct {
	re      *regexp.Regexp
	message string
	errType ErrorType
}

// redFlagRules is the lexical pre-filter. Obviously dangerous constructs
// are rejected here before paying for a full parse.
func redFlagRules() []patternRule {
	return []patternRule{
		{regexp.MustCompile(`\beval\s*\(`), "dynamic code evaluation via eval() is not permitted", ErrorSecurity},
		{regexp.MustCompile(`\b(?:new\s+)?Function\s*\(\s*['"]`), "constructor-based code generation is not permitted", ErrorSecurity},
		{regexp.MustCompile(`\bset(?:Timeout|Interval|Immediate)\s*\(`), "timer scheduling is not permitted", ErrorSecurity},
		{regexp.MustCompile(`\bprocess\s*[.\[]`), "access to the process object is not permitted", ErrorSecurity},
		{regexp.MustCompile(`\b(?:globalThis|global)\s*[.\[]`), "access to the global object is not permitted", ErrorSecurity},
		{regexp.MustCompile(`__proto__|\bObject\s*\.\s*setPrototypeOf\s*\(|\.\s*prototype\s*\[`), "prototype manipulation is not permitted", ErrorSecurity},
		{regexp.MustCompile(`while\s*\(\s*(?:true|1)\s*\)|for\s*\(\s*;\s*;\s*\)`), "unbounded busy-wait loops are not permitted", ErrorSecurity},
		{regexp.MustCompile(`__dirname|__filename`), "filesystem path globals are not permitted", ErrorSecurity},
		{regexp.MustCompile(`\bnew\s+Worker\s*\(|\bworker_threads\b`), "worker threads are not permitted", ErrorSecurity},
		{regexp.MustCompile(`\bSharedArrayBuffer\b|\bAtomics\s*\.`), "shared memory primitives are not permitted", ErrorSecurity},
		{regexp.MustCompile(`\brequire\s*\.\s*(?:cache|extensions|resolve)\b|\bmodule\s*\.\s*_load\b`), "module system tampering is not permitted", ErrorSecurity},
		{regexp.MustCompile(`\bBuffer\s*\.\s*(?:from|alloc|allocUnsafe)\s*\(`), "binary buffer manipulation is not permitted", ErrorSecurity},
		{regexp.MustCompile(`\b(?:unescape|decodeURI(?:Component)?)\s*\(\s*['"]`), "decoding string literals is not permitted", ErrorSecurity},
		{regexp.MustCompile(`\bconsole\s*\.\s*(?:log|warn|error|info|debug)\s*=`), "console tampering is not permitted", ErrorSecurity},
	}
}

// obfuscationRules is a second lexical pass for suspicious encodings that
// survive the red-flag scan.
func obfuscationRules() []patternRule {
	return []patternRule{
		{regexp.MustCompile(`String\s*\.\s*fromCharCode\s*\([^)]{20,}`), "character-code string construction suggests obfuscated code", ErrorSecurity},
		{regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){10,}`), "long hex escape sequences suggest obfuscated code", ErrorSecurity},
		{regexp.MustCompile(`(?:\\u[0-9a-fA-F]{4}){10,}`), "long unicode escape sequences suggest obfuscated code", ErrorSecurity},
		{regexp.MustCompile(`\[(?:\s*\d+\s*,){100,}`), "large numeric literal arrays suggest an obfuscated payload", ErrorSecurity},
	}
}

// defaultAllowedModules is the vetted library set scripts may load.
// Everything outside this list (and the trusted prefixes) is denied.
func defaultAllowedModules() []string {
	return []string{
		"playwright",
		"puppeteer",
		"pg",
		"mysql2",
		"mongodb",
		"redis",
		"axios",
		"chai",
		"joi",
		"dayjs",
		"lodash",
		"uuid",
	}
}

// defaultAllowedPrefixes are trusted namespaces for first-party helpers.
func defaultAllowedPrefixes() []string {
	return []string{"@scriptgate/"}
}

// defaultBlockedIdentifiers are globals that must never be referenced,
// whether bare or as the object of a member call.
func defaultBlockedIdentifiers() []string {
	return []string{
		"require",
		"process",
		"global",
		"globalThis",
		"Buffer",
		"__dirname",
		"__filename",
		"module",
		"exports",
		"eval",
		"Function",
		"AsyncFunction",
		"GeneratorFunction",
		"setTimeout",
		"setInterval",
		"setImmediate",
		"clearTimeout",
		"clearInterval",
		"clearImmediate",
		"atob",
		"btoa",
		"Worker",
		"SharedArrayBuffer",
		"Atomics",
		"WebAssembly",
	}
}
