// Package dataset reads radar sample collections and reshapes their bands
// into square two-channel grids.
package dataset

import (
	"bytes"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Load reads the JSON collection at path and builds a Batch from it.
func Load(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a JSON collection in either records layout
// ([{"id": ..., "band_1": [...]}, ...]) or columns layout
// ({"id": {"0": ...}, "band_1": {"0": [...]}, ...}).
func Decode(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, err
	}
	return NewBatch(records)
}

func decodeRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, malformed(-1, nil, "empty document")
	}

	switch data[0] {
	case '[':
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, malformed(-1, err, "cannot parse records")
		}
		return records, nil
	case '{':
		return decodeColumns(data)
	default:
		return nil, malformed(-1, nil, "expected a JSON array or object, got %q", data[0])
	}
}

func decodeColumns(data []byte) ([]Record, error) {
	var columns map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, malformed(-1, err, "cannot parse columns")
	}

	ids, ok := columns["id"]
	if !ok {
		return nil, malformed(-1, nil, "missing column %q", "id")
	}

	type indexKey struct {
		key string
		pos int
	}
	keys := make([]indexKey, 0, len(ids))
	for k := range ids {
		pos, err := strconv.Atoi(k)
		if err != nil {
			return nil, malformed(-1, err, "non-numeric row index %q", k)
		}
		keys = append(keys, indexKey{key: k, pos: pos})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].pos < keys[j].pos })

	records := make([]Record, len(keys))
	for i, k := range keys {
		fields := map[string]json.RawMessage{}
		for name, col := range columns {
			if v, ok := col[k.key]; ok {
				fields[name] = v
			}
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, malformed(i, err, "cannot assemble row")
		}
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			return nil, malformed(i, err, "cannot parse row")
		}
	}
	return records, nil
}

// NewBatch reshapes records into (dim, dim, 2) grids. The first record's
// band_1 length fixes dim for the whole collection.
func NewBatch(records []Record) (*Batch, error) {
	if len(records) == 0 {
		return nil, malformed(-1, nil, "no records")
	}

	n := len(records[0].Band1)
	dim, ok := SquareSide(n)
	if !ok {
		return nil, malformed(0, nil, "band_1 length %d is not a perfect square", n)
	}

	b := &Batch{
		Dim:       dim,
		IDs:       make([]ID, len(records)),
		Grids:     make([][]float64, len(records)),
		IncAngles: make([]IncAngle, len(records)),
	}
	for i, r := range records {
		if r.ID == "" {
			return nil, malformed(i, nil, "missing id")
		}
		if r.Band1 == nil || r.Band2 == nil {
			return nil, malformed(i, nil, "missing band_1 or band_2")
		}
		if len(r.Band1) != n || len(r.Band2) != n {
			return nil, malformed(i, nil, "band lengths %d/%d, want %d", len(r.Band1), len(r.Band2), n)
		}
		b.IDs[i] = r.ID
		b.Grids[i] = Interleave(r.Band1, r.Band2)
		b.IncAngles[i] = r.IncAngle
	}
	return b, nil
}

// SquareSide returns the exact integer square root of n.
func SquareSide(n int) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	d := int(math.Sqrt(float64(n)))
	for d*d > n {
		d--
	}
	for (d+1)*(d+1) <= n {
		d++
	}
	return d, d*d == n
}

// Interleave stacks two flattened row-major bands on a trailing channel axis.
func Interleave(band1, band2 []float64) []float64 {
	grid := make([]float64, 2*len(band1))
	for i := range band1 {
		grid[2*i] = band1[i]
		grid[2*i+1] = band2[i]
	}
	return grid
}
