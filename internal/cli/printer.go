package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// printer writes command results as text or JSON.
type printer struct {
	out  io.Writer
	json bool
}

// result prints v as indented JSON, or calls text when JSON is off.
func (p *printer) result(v any, text func(w io.Writer)) error {
	if p.json {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = fmt.Fprintln(p.out, string(data))
		return err
	}
	text(p.out)
	return nil
}

// table prints rows under a header with aligned columns.
func (p *printer) table(header []string, rows [][]string) func(w io.Writer) {
	return func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		writeRow(tw, header)
		for _, r := range rows {
			writeRow(tw, r)
		}
		tw.Flush()
	}
}

func writeRow(w io.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}
