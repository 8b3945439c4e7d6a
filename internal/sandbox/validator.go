package sandbox

import "regexp"

// entryPattern matches the conventional entry point declaration:
// `function run(` possibly surrounded by whitespace.
var entryPattern = regexp.MustCompile(`(?m)function\s+run\s*\(`)

// forbiddenPattern pairs a regex with the human-readable capability it guards.
// These are a defense-in-depth screen, not the authoritative barrier — the
// Sandbox Builder (builder.go) is what actually strips the capability. The
// validator exists to reject scripts that *advertise* intent to bypass it,
// giving clearer diagnostics than a runtime nil-index panic would.
type forbiddenPattern struct {
	name string
	re   *regexp.Regexp
}

var forbiddenPatterns = []forbiddenPattern{
	// Direct references to capability namespaces the sandbox strips.
	{"os", regexp.MustCompile(`\bos\s*\.\s*\w+`)},
	{"io", regexp.MustCompile(`\bio\s*\.\s*\w+`)},
	{"require", regexp.MustCompile(`\brequire\s*\(`)},
	{"load", regexp.MustCompile(`\bloadstring\s*\(|\bload\s*\(`)},
	{"loadfile", regexp.MustCompile(`\bloadfile\s*\(`)},
	{"dofile", regexp.MustCompile(`\bdofile\s*\(`)},
	{"getfenv", regexp.MustCompile(`\bgetfenv\s*\(`)},
	{"setfenv", regexp.MustCompile(`\bsetfenv\s*\(`)},
	{"debug", regexp.MustCompile(`\bdebug\s*\.\s*\w+`)},

	// Obfuscated access via the interpreter's global-table handle: indexing
	// by string, indexing by identifier, raw getters, metatable inspection
	// on globals.
	{"global-table-handle", regexp.MustCompile(`\b_G\b|\b_ENV\b`)},
	{"raw-global-access", regexp.MustCompile(`\brawget\s*\(|\brawset\s*\(`)},
	{"metatable-on-globals", regexp.MustCompile(`\bgetmetatable\s*\(\s*(_G|_ENV)\s*\)|\bsetmetatable\s*\(\s*(_G|_ENV)\s*,`)},

	// String-concatenation patterns that assemble a forbidden name from
	// fragments, e.g. `("o") .. ("s")`, to sidestep a naive substring check.
	{"string-concat-obfuscation", regexp.MustCompile(`["'][a-zA-Z_]{1,4}["']\s*\)?\s*\.\.\s*\(?\s*["'][a-zA-Z_]{1,4}["']`)},
}

// ValidationResult carries the structured outcome of validate, including
// which forbidden pattern (if any) tripped — useful for log fields and tests,
// even though the public contract is the binary Ok/Err.
type ValidationResult struct {
	Valid      bool
	MissingEntry bool
	Violation  string // name of the forbidden pattern that matched, if any
}

// validate performs the static textual screen run before a sandbox is ever
// built. It never panics on malformed source: unparseable text is treated as
// "missing entry" unless a forbidden substring matches first.
func validate(source string) (ValidationResult, *Error) {
	for _, fp := range forbiddenPatterns {
		if fp.re.MatchString(source) {
			return ValidationResult{Valid: false, Violation: fp.name},
				newErr(KindDangerousConstruct, "forbidden construct detected: %s", fp.name)
		}
	}

	if !entryPattern.MatchString(source) {
		return ValidationResult{Valid: false, MissingEntry: true},
			newErr(KindMissingEntry, "script does not declare function run(...)")
	}

	return ValidationResult{Valid: true}, nil
}

// Validate is the public operation: validate(source) -> Ok | Err({kind,
// message}). validate(s) is a pure function of s; repeated calls on the
// same source yield identical results.
func Validate(source string) *Error {
	_, err := validate(source)
	return err
}
