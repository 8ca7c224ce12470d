package logger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// ErrorEntry is one link of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// collectErrorEntries flattens a zerr chain into one entry per message.
// A standard error ends the chain with its full text.
// zerr links without a message only carry metadata, which is merged into the
// next link that has one.
func collectErrorEntries(err error) []ErrorEntry {
	var (
		entries []ErrorEntry
		pending map[string]any
	)

	for err != nil {
		z, ok := err.(*zerr.Error)
		if !ok {
			entries = append(entries, ErrorEntry{Message: err.Error(), Metadata: pending})
			break
		}

		meta := z.Metadata()
		if pending != nil {
			maps.Copy(meta, pending)
			pending = nil
		}
		if z.Message() == "" {
			pending = meta
		} else {
			entries = append(entries, ErrorEntry{Message: z.Message(), Metadata: meta})
		}
		err = errors.Unwrap(err)
	}
	return entries
}

// formatErrorEntries renders entries as an "Error:" block followed by a
// "Caused by:" list.
func formatErrorEntries(entries []ErrorEntry) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	writeEntry(&b, "Error: ", "       ", entries[0])
	for i, e := range entries[1:] {
		if i == 0 {
			b.WriteString("\n\n  Caused by:")
		}
		b.WriteString("\n")
		writeEntry(&b, "    → ", "      ", e)
	}
	return b.String()
}

func writeEntry(b *strings.Builder, prefix, indent string, e ErrorEntry) {
	lines := strings.Split(e.Message, "\n")
	b.WriteString(prefix + lines[0])
	for _, line := range lines[1:] {
		b.WriteString("\n" + indent + line)
	}
	for _, k := range slices.Sorted(maps.Keys(e.Metadata)) {
		fmt.Fprintf(b, "\n%s%s: %v", indent, k, e.Metadata[k])
	}
}
