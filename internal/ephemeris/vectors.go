package ephemeris

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PositionFileName returns the position file name for a Horizons id.
func PositionFileName(id string) string {
	return fmt.Sprintf("planet_%s_positions.txt", strings.TrimSpace(id))
}

// ReadVectors reads "Date, X, Y, Z" records from r. An optional header line
// is skipped. Malformed records are skipped with a warning log.
func ReadVectors(r io.Reader, logger *slog.Logger) ([]Vector, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var vectors []Vector
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Warn("skipping malformed position record", "line", perr.Line, "error", err)
				continue
			}
			return nil, fmt.Errorf("reading position data: %w", err)
		}

		if line == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}

		v, err := parseVector(record)
		if err != nil {
			logger.Warn("skipping malformed position record", "line", line, "error", err)
			continue
		}
		vectors = append(vectors, v)
	}

	return vectors, nil
}

func parseVector(record []string) (Vector, error) {
	if len(record) != 4 {
		return Vector{}, fmt.Errorf("expected 4 fields, got %d", len(record))
	}
	v := Vector{Date: strings.TrimSpace(record[0])}
	if _, err := v.Time(); err != nil {
		return Vector{}, err
	}

	coords := [3]*float64{&v.X, &v.Y, &v.Z}
	for i, dst := range coords {
		f, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return Vector{}, fmt.Errorf("field %d: %w", i+2, err)
		}
		*dst = f
	}
	return v, nil
}

// WriteVectors writes vectors as "Date, X, Y, Z" records with a header line.
func WriteVectors(w io.Writer, vectors []Vector) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "X", "Y", "Z"}); err != nil {
		return err
	}
	for _, v := range vectors {
		record := []string{
			v.Date,
			strconv.FormatFloat(v.X, 'g', -1, 64),
			strconv.FormatFloat(v.Y, 'g', -1, 64),
			strconv.FormatFloat(v.Z, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadPositionFile reads the position file for id from dir.
// A missing file yields ErrNoCachedData.
func LoadPositionFile(dir, id string, logger *slog.Logger) ([]Vector, error) {
	f, err := os.Open(filepath.Join(dir, PositionFileName(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNoCachedData)
		}
		return nil, fmt.Errorf("opening position file: %w", err)
	}
	defer f.Close()

	return ReadVectors(f, logger)
}

// Nearest returns the vector whose date is closest to date (YYYY-MM-DD).
// Ties resolve to the earlier record.
func Nearest(vectors []Vector, date string) (Vector, error) {
	target := Vector{Date: date}
	want, err := target.JD()
	if err != nil {
		return Vector{}, err
	}
	if len(vectors) == 0 {
		return Vector{}, ErrNoCachedData
	}

	type dated struct {
		v  Vector
		jd float64
	}
	all := make([]dated, 0, len(vectors))
	for _, v := range vectors {
		jd, err := v.JD()
		if err != nil {
			continue
		}
		all = append(all, dated{v: v, jd: jd})
	}
	if len(all) == 0 {
		return Vector{}, ErrNoCachedData
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].jd < all[j].jd })

	best := all[0]
	for _, d := range all[1:] {
		if math.Abs(d.jd-want) < math.Abs(best.jd-want) {
			best = d
		}
	}
	return best.v, nil
}
