package executor

import "strings"

// dangerousPatterns is the fixed, pre-execution pattern set: shell
// invocation, arbitrary code eval, raw interpreter spawn, dynamic imports,
// write-mode filesystem opens, recursive tree deletion. A match on any of
// these refuses execution before any subprocess is spawned.
var dangerousPatterns = []string{
	"os.system(",
	"subprocess.",
	"exec(",
	"eval(",
	"__import__(",
	"importlib.import_module(",
	"open(", // followed by a write mode check below
	"shutil.rmtree(",
	"rm -rf",
	"os.popen(",
	"child_process.exec",
	"/bin/sh",
	"/bin/bash",
}

// writeModeMarkers narrows a bare "open(" match to write-mode opens only —
// read-only file access is not a violation.
var writeModeMarkers = []string{`"w"`, `'w'`, `"a"`, `'a'`, `"w+"`, `'w+'`, `os.O_WRONLY`, `os.O_CREATE`}

// checkStatic scans source for the dangerous pattern set. Returns the
// matched pattern (empty if none).
func checkStatic(source string) string {
	for _, p := range dangerousPatterns {
		if !strings.Contains(source, p) {
			continue
		}
		if p == "open(" {
			if !containsAny(source, writeModeMarkers) {
				continue
			}
		}
		return p
	}
	return ""
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
