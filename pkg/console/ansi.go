// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"regexp"
	"strings"
)

// ansiRe matches CSI sequences and simple two-byte ESC sequences. Raw bytes
// stay in the session buffer; stripping happens at read time only.
var ansiRe = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// lfRunRe matches runs of three or more newlines after CR folding.
var lfRunRe = regexp.MustCompile(`\n{3,}`)

// StripANSI normalizes console output for agent consumption: removes ANSI
// escape sequences, folds CRLF and lone CR to LF, and collapses runs of
// three or more LFs to exactly two.
func StripANSI(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return lfRunRe.ReplaceAllString(s, "\n\n")
}
