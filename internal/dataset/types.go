package dataset

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// ID is a sample identifier. Both JSON strings and numbers are accepted and
// kept in their textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", data)
	}
	*id = ID(data)
	return nil
}

// IncAngle is the incidence angle of a sample. The value is passed through
// untouched, including the "na" sentinel used for missing angles.
type IncAngle struct {
	Value   float64
	Missing bool
	raw     string
}

func (a *IncAngle) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = IncAngle{Missing: true, raw: ""}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*a = IncAngle{Missing: true, raw: s}
			return nil
		}
		*a = IncAngle{Value: v, raw: s}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*a = IncAngle{Value: v, raw: string(data)}
	return nil
}

// String returns the angle as it appeared in the input.
func (a IncAngle) String() string {
	if a.raw == "" && !a.Missing {
		return strconv.FormatFloat(a.Value, 'g', -1, 64)
	}
	return a.raw
}

// Record is one sample of the input collection.
type Record struct {
	ID       ID        `json:"id"`
	Band1    []float64 `json:"band_1"`
	Band2    []float64 `json:"band_2"`
	IncAngle IncAngle  `json:"inc_angle"`
}

// Batch holds every sample of an input file in input order. IDs, Grids and
// IncAngles are aligned by index.
type Batch struct {
	Dim       int
	IDs       []ID
	Grids     [][]float64
	IncAngles []IncAngle
}

// Len returns the number of samples.
func (b *Batch) Len() int {
	return len(b.IDs)
}
