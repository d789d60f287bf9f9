//go:build windows
// +build windows

package subprocess

import "strings"

// escapeArgWindows quotes a single argument using the same backslash/quote
// rules the Microsoft C runtime's command-line parser (and therefore
// CreateProcessW-launched programs built with it) expects:
//   - a run of backslashes immediately before a '"' is doubled, and the
//     '"' itself is escaped with a backslash;
//   - a run of backslashes at the very end of the argument (immediately
//     before the closing quote this function adds) is doubled, since
//     otherwise it would escape that closing quote instead of terminating
//     cleanly.
// Arguments containing no whitespace, quotes, or tabs are passed through
// unquoted, matching how Windows argv splitting treats them identically
// either way.
func escapeArgWindows(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n\v\"") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			for ; slashes > 0; slashes-- {
				b.WriteString(`\\`)
			}
			b.WriteString(`\"`)
		default:
			for ; slashes > 0; slashes-- {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	}
	for ; slashes > 0; slashes-- {
		b.WriteString(`\\`)
	}
	b.WriteByte('"')
	return b.String()
}

// joinArgsWindows builds the flat command-line string CreateProcessW takes,
// from an already-tokenized argv (the form every other platform uses).
func joinArgsWindows(argv []string) string {
	escaped := make([]string, len(argv))
	for i, a := range argv {
		escaped[i] = escapeArgWindows(a)
	}
	return strings.Join(escaped, " ")
}

// neutralizeForBatch escapes characters that a batch-file interpreter
// treats specially even inside a quoted CreateProcessW argument — '%' (env
// var expansion) and embedded CR/LF (command injection via a multi-line
// argument) — matching the defenses Node's child_process applies before
// invoking a .bat/.cmd file through cmd.exe.
func neutralizeForBatch(arg string) string {
	r := strings.NewReplacer(
		"%", "%%",
		"\r\n", " ",
		"\n", " ",
		"\r", " ",
	)
	return r.Replace(arg)
}
