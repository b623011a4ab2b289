package exporter

import (
	"fmt"
	"io"
)

// Report prints one console line per result followed by the run total.
// Datasets never reached because of cancellation count towards the total.
func Report(w io.Writer, s Summary) error {
	for _, r := range s.Results {
		var err error
		if r.OK() {
			_, err = fmt.Fprintf(w, "Saved %d text samples to %s\n", r.Count, r.OutputPath)
		} else {
			_, err = fmt.Fprintf(w, "Error loading dataset %s: %v\n", r.Dataset, r.Err)
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Exported %d of %d datasets\n", s.Succeeded(), s.Total)
	return err
}
