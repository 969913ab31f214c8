// Package submission writes predictions as an id,is_iceberg CSV table.
package submission

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Brownie44l1/iceberg-predict/internal/dataset"
)

// Header is the first row of every submission.
var Header = []string{"id", "is_iceberg"}

// Encode writes the header and one row per sample, in the given order.
func Encode(w io.Writer, ids []dataset.ID, probs []float32) error {
	if len(ids) != len(probs) {
		return errors.Errorf("%d ids but %d predictions", len(ids), len(probs))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i, id := range ids {
		row := []string{string(id), strconv.FormatFloat(float64(probs[i]), 'g', -1, 32)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write encodes the submission to path. The table is written to a temporary
// file in the same directory and renamed into place, so path is never left
// half written.
func Write(path string, ids []dataset.ID, probs []float32) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".submission-*.csv")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, ids, probs); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename to %s", path)
	}
	return nil
}
