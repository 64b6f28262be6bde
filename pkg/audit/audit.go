// Package audit parses CloudTrail log archives.
package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mosajjal/iamwatch/pkg/models"
)

// ErrMalformedBatch is returned when the archive is not an object holding a
// Records array. Nothing from such an archive is usable.
var ErrMalformedBatch = errors.New("malformed audit batch")

// Parse returns the records of a CloudTrail archive in file order. Entries
// that do not decode as a record are left out and reported in the second
// return value; only a broken envelope fails the whole batch.
func Parse(data []byte) ([]models.RawAuditRecord, []error, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, nil, fmt.Errorf("%w: top level is not an object", ErrMalformedBatch)
	}

	// decoded by hand since struct tags would also accept "records"
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	rawRecords, ok := envelope["Records"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawRecords), []byte("null")) {
		return nil, nil, fmt.Errorf("%w: missing Records array", ErrMalformedBatch)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawRecords, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: Records is not an array: %v", ErrMalformedBatch, err)
	}

	records := make([]models.RawAuditRecord, 0, len(entries))
	var recordErrs []error
	for i, raw := range entries {
		var rec models.RawAuditRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			recordErrs = append(recordErrs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, recordErrs, nil
}
