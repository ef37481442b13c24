package snapshot

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	appLog "pss/internal/log"
	"pss/internal/model"
)

// Store is the part of the schedule store an import drives.
type Store interface {
	Create(d model.Draft) error
	Delete(name string) error
}

// Parse reads a whole snapshot and decodes it into records.
func Parse(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&records); err != nil {
		return nil, model.Importf(&model.Error{Code: model.CodeValidation, Err: err}, "Snapshot is not a JSON array of records")
	}
	return records, nil
}

// Validate decodes every record, stopping at the first one that does not
// fit the schema.
func Validate(records []Record) ([]model.Draft, error) {
	drafts := make([]model.Draft, 0, len(records))
	for i, rec := range records {
		d, err := Decode(rec)
		if err != nil {
			return nil, model.Importf(err, "Record %d (%q)", i+1, rec.DisplayName())
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// Import validates every record of r and then creates them one by one in
// s. If any record is rejected, the tasks created by this call are deleted
// again in reverse order and the first error is returned, so s ends up as
// it was before the call. It returns the number of records created.
func Import(r io.Reader, s Store) (int, error) {
	records, err := Parse(r)
	if err != nil {
		return 0, err
	}
	return Apply(records, s)
}

// Apply is Import for records that were already parsed.
func Apply(records []Record, s Store) (int, error) {
	drafts, err := Validate(records)
	if err != nil {
		return 0, err
	}

	created := make([]string, 0, len(drafts))
	for i, d := range drafts {
		if err := s.Create(d); err != nil {
			rollback(s, created)
			return 0, model.Importf(err, "Record %d (%q)", i+1, d.Name)
		}
		created = append(created, d.Name)
	}
	return len(created), nil
}

func rollback(s Store, created []string) {
	for i := len(created) - 1; i >= 0; i-- {
		err := s.Delete(created[i])
		// A recurring delete cascades to its anti-tasks, which may already be gone.
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			appLog.Error("import rollback failed", err, "name", created[i])
		}
	}
	if len(created) > 0 {
		appLog.Debug("import rolled back", "deleted", len(created))
	}
}
