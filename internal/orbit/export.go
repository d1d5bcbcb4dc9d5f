package orbit

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV writes p as a header line followed by one "m,x,y[,z]" record
// per sample. The z column is omitted for planar paths.
func WriteCSV(w io.Writer, p *Path) error {
	cw := csv.NewWriter(w)
	header := []string{"m", "x", "y"}
	if p.Z != nil {
		header = append(header, "z")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i := 0; i < p.Len(); i++ {
		record[0] = strconv.FormatFloat(p.M[i], 'g', -1, 64)
		record[1] = strconv.FormatFloat(p.X[i], 'g', -1, 64)
		record[2] = strconv.FormatFloat(p.Y[i], 'g', -1, 64)
		if p.Z != nil {
			record[3] = strconv.FormatFloat(p.Z[i], 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
