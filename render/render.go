// Package render writes the merged allow-list as a Python module that
// django-turnstile-site-protect settings can import.
package render

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// TimeLayout is the format of the generation timestamp.
const TimeLayout = "2006-01-02 15:04:05"

// ListName is the Python variable holding the ranges.
const ListName = "GOOD_BOTS"

// Document is everything that ends up in the generated file.
type Document struct {
	Bots      map[string][]string
	Total     int
	Source    string
	Generated time.Time
}

var quoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// pyQuote renders s as a single-quoted Python string literal.
func pyQuote(s string) string {
	return "'" + quoter.Replace(s) + "'"
}

// Render writes d to w. Bots are emitted in ascending name order and each
// bot's ranges in the order given.
func Render(w io.Writer, d Document) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# Bot IP addresses for django-turnstile-site-protect")
	fmt.Fprintf(bw, "# Generated on %s\n", d.Generated.Format(TimeLayout))
	fmt.Fprintf(bw, "# Source: %s\n", d.Source)
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "%s = [\n", ListName)

	names := make([]string, 0, len(d.Bots))
	for name := range d.Bots {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		// a newline in a name would end the comment
		fmt.Fprintf(bw, "    # %s\n", strings.ReplaceAll(name, "\n", " "))
		for _, r := range d.Bots[name] {
			fmt.Fprintf(bw, "    %s,\n", pyQuote(r))
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "]")
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "# Total IP ranges: %d\n", d.Total)

	return bw.Flush()
}

// WriteFile renders d and overwrites path with the result.
func WriteFile(path string, d Document) error {
	var buf bytes.Buffer
	if err := Render(&buf, d); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
