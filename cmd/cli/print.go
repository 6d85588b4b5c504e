package main

import (
	"fmt"
	"io"
	"strings"
)

// printReply writes text followed by exactly one newline.
func printReply(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, strings.TrimRight(text, "\n"))
}
