// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"sort"
	"strings"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// interpretEscapes turns the backslash escapes agents type into control
// bytes. Only the sequences below are interpreted; anything else passes
// through with its backslash intact.
func interpretEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		case 'x':
			if strings.HasPrefix(s[i:], `\x1b`) || strings.HasPrefix(s[i:], `\x1B`) {
				b.WriteByte(0x1b)
				i += 3
			} else {
				b.WriteByte(s[i])
			}
		case 'e':
			b.WriteByte(0x1b)
			i++
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// normalizeNewlines converts every LF and every lone CR to CRLF, the line
// discipline node consoles expect. CRLF pairs pass through untouched, so the
// conversion is idempotent. This is the single normalization site for
// outbound console text.
func normalizeNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r':
			b.WriteString("\r\n")
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\n':
			b.WriteString("\r\n")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// keystrokes is the closed vocabulary of named keys and the byte sequences
// they send.
var keystrokes = map[string]string{
	"up":    "\x1b[A",
	"down":  "\x1b[B",
	"right": "\x1b[C",
	"left":  "\x1b[D",

	"home":     "\x1b[H",
	"end":      "\x1b[F",
	"insert":   "\x1b[2~",
	"delete":   "\x1b[3~",
	"pageup":   "\x1b[5~",
	"pagedown": "\x1b[6~",

	"f1":  "\x1bOP",
	"f2":  "\x1bOQ",
	"f3":  "\x1bOR",
	"f4":  "\x1bOS",
	"f5":  "\x1b[15~",
	"f6":  "\x1b[17~",
	"f7":  "\x1b[18~",
	"f8":  "\x1b[19~",
	"f9":  "\x1b[20~",
	"f10": "\x1b[21~",
	"f11": "\x1b[23~",
	"f12": "\x1b[24~",

	"enter":     "\r\n",
	"tab":       "\t",
	"space":     " ",
	"esc":       "\x1b",
	"backspace": "\x7f",
}

func init() {
	// ctrl_a .. ctrl_z map to 0x01 .. 0x1a.
	for c := byte('a'); c <= 'z'; c++ {
		keystrokes["ctrl_"+string(c)] = string([]byte{c - 'a' + 1})
	}
}

// keystrokeBytes resolves a key name; unknown names list the vocabulary.
func keystrokeBytes(key string) (string, error) {
	if seq, ok := keystrokes[strings.ToLower(key)]; ok {
		return seq, nil
	}
	names := make([]string, 0, len(keystrokes))
	for name := range keystrokes {
		names = append(names, name)
	}
	sort.Strings(names)
	return "", mcperr.NewInvalidParameter(fmt.Sprintf("unknown keystroke %q", key), nil).
		WithDetails("supported keys: " + strings.Join(names, ", "))
}
