// Package console implements the interactive terminal frontend: the
// input loop, local slash commands, and Zandronum color code handling.
package console

import (
	"regexp"
	"strings"
)

// Zandronum marks color changes with an escape that arrives either as
// the raw 0x1C byte or as the literal two characters "\c", followed by
// a single code letter or a bracketed long form like "[gold]".
var colorPattern = regexp.MustCompile(`(?:\x1c|\\c)(\[[a-zA-Z0-9\-]+\]|[a-zA-Z0-9\-!+*])`)

// ansiByCode maps single-letter color codes to terminal escapes. The
// palette is a best-effort match; bracketed and unknown codes reset.
var ansiByCode = map[string]string{
	"a": "\x1b[31m",       // brick
	"b": "\x1b[33m",       // tan
	"c": "\x1b[37m",       // gray
	"d": "\x1b[32m",       // green
	"e": "\x1b[33m",       // brown
	"f": "\x1b[93m",       // gold
	"g": "\x1b[91m",       // red
	"h": "\x1b[34m",       // blue
	"i": "\x1b[38;5;208m", // orange
	"j": "\x1b[97m",       // white
	"k": "\x1b[93m",       // yellow
	"l": "\x1b[39m",       // untranslated
	"m": "\x1b[30m",       // black
	"n": "\x1b[94m",       // light blue
	"o": "\x1b[37m",       // cream
	"p": "\x1b[33m",       // olive
	"q": "\x1b[32m",       // dark green
	"r": "\x1b[31m",       // dark red
	"s": "\x1b[33m",       // dark brown
	"t": "\x1b[35m",       // purple
	"u": "\x1b[90m",       // dark gray
	"v": "\x1b[36m",       // cyan
	"-": "\x1b[0m",        // back to normal
	"+": "\x1b[1m",        // bold
	"*": "\x1b[32m",       // chat
	"!": "\x1b[32m",       // team chat
}

// StripColors removes Zandronum color escapes from console text.
func StripColors(text string) string {
	return colorPattern.ReplaceAllString(text, "")
}

// RenderColors converts Zandronum color escapes to ANSI sequences. Text
// that contained an escape gets a trailing reset so a color never leaks
// into the prompt.
func RenderColors(text string) string {
	replaced := false
	out := colorPattern.ReplaceAllStringFunc(text, func(match string) string {
		replaced = true
		code := strings.TrimPrefix(match, "\\c")
		code = strings.TrimPrefix(code, "\x1c")
		// Codes are case-insensitive on the wire.
		if ansi, ok := ansiByCode[strings.ToLower(code)]; ok {
			return ansi
		}
		return "\x1b[0m"
	})
	if !replaced {
		return out
	}
	if strings.HasSuffix(out, "\n") {
		return strings.TrimSuffix(out, "\n") + "\x1b[0m\n"
	}
	return out + "\x1b[0m"
}
