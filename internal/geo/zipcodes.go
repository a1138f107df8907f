package geo

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

//go:embed zipcodes.csv
var builtinCSV []byte

var zipPattern = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)

// IsZip reports whether s looks like a US postal code (5 digits, optionally +4).
func IsZip(s string) bool {
	return zipPattern.MatchString(s)
}

// Zip5 returns the five-digit prefix of a postal code recognized by IsZip.
func Zip5(s string) string {
	if len(s) < 5 {
		return s
	}
	return s[:5]
}

type ZipInfo struct {
	Zip       string
	Latitude  float64
	Longitude float64
	City      string
	State     string
}

// Resolver turns a five-digit postal code into its centroid.
// A false result means the code is unknown to this source.
type Resolver interface {
	Resolve(ctx context.Context, zip string) (ZipInfo, bool)
}

// Chain asks each resolver in order and returns the first hit.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, zip string) (ZipInfo, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if z, ok := r.Resolve(ctx, zip); ok {
			return z, true
		}
	}
	return ZipInfo{}, false
}

// Table is an in-memory, read-only postal code table.
type Table struct {
	rows map[string]ZipInfo
}

func (t *Table) Lookup(zip string) (ZipInfo, bool) {
	if t == nil {
		return ZipInfo{}, false
	}
	z, ok := t.rows[Zip5(strings.TrimSpace(zip))]
	return z, ok
}

// Resolve implements Resolver.
func (t *Table) Resolve(_ context.Context, zip string) (ZipInfo, bool) {
	return t.Lookup(zip)
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Builtin returns the table compiled into the binary (major US metro codes).
// Codes outside it are left to the file set by ZIPCODES_FILE and the remote resolver.
func Builtin() *Table {
	t, err := ReadCSV(bytes.NewReader(builtinCSV))
	if err != nil {
		panic("geo: builtin zipcodes table is corrupt: " + err.Error())
	}
	return t
}

// Load returns the builtin table, extended (and overridden) by the CSV at path when path is set.
func Load(path string) (*Table, error) {
	t := Builtin()
	if path == "" {
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zipcodes file: %w", err)
	}
	defer f.Close()

	extra, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read zipcodes file %s: %w", path, err)
	}
	for k, v := range extra.rows {
		t.rows[k] = v
	}
	return t, nil
}

// columns holds the field positions of one zip table layout.
type columns struct {
	zip, lat, lon, city, state int
}

var defaultColumns = columns{zip: 0, lat: 1, lon: 2, city: 3, state: 4}

// headerColumns maps a header row onto column positions. It reports false
// when rec is not a header.
func headerColumns(rec []string) (columns, bool) {
	c := columns{zip: -1, lat: -1, lon: -1, city: -1, state: -1}
	for i, name := range rec {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "ZIP", "GEOID", "ZCTA5", "ZCTA5CE20":
			c.zip = i
		case "LATITUDE", "LAT", "INTPTLAT":
			c.lat = i
		case "LONGITUDE", "LON", "LNG", "INTPTLONG":
			c.lon = i
		case "CITY":
			c.city = i
		case "STATE":
			c.state = i
		}
	}
	if c.zip < 0 || c.lat < 0 || c.lon < 0 {
		return columns{}, false
	}
	return c, true
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ReadCSV parses a zip centroid table. Two layouts are accepted:
// comma separated "zip,latitude,longitude[,city,state]" rows, and the
// tab separated Census ZCTA gazetteer (GEOID, INTPTLAT, INTPTLONG columns).
// A header row, when present, decides the column positions.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	cr := csv.NewReader(br)
	if first, _ := br.Peek(br.Size()); bytes.ContainsRune(firstLine(first), '\t') {
		cr.Comma = '\t'
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	t := &Table{rows: map[string]ZipInfo{}}
	cols := defaultColumns
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: want at least 3 fields, got %d", line, len(rec))
		}
		if line == 1 {
			if hc, ok := headerColumns(rec); ok {
				cols = hc
				continue
			}
		}

		zip := field(rec, cols.zip)
		if len(zip) != 5 || !IsZip(zip) {
			return nil, fmt.Errorf("line %d: invalid zip %q", line, zip)
		}
		lat, err := strconv.ParseFloat(field(rec, cols.lat), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(field(rec, cols.lon), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}

		t.rows[zip] = ZipInfo{
			Zip:       zip,
			Latitude:  lat,
			Longitude: lon,
			City:      field(rec, cols.city),
			State:     field(rec, cols.state),
		}
	}
	return t, nil
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}
