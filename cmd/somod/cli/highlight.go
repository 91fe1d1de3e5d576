// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"io"

	"github.com/alecthomas/chroma/v2/quick"
)

// WriteDocument writes an encoded template document to w. A terminal
// gets syntax highlighting for format (yaml or json); anything else
// gets the bytes unchanged.
func WriteDocument(w io.Writer, data []byte, format string) error {
	if !IsTerminal(w) {
		_, err := w.Write(data)
		return err
	}
	var buffer bytes.Buffer
	if err := quick.Highlight(&buffer, string(data), format, "terminal256", "monokai"); err != nil {
		_, err := w.Write(data)
		return err
	}
	_, err := buffer.WriteTo(w)
	return err
}
