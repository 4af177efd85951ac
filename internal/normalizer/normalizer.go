package normalizer

import (
	"fmt"

	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/models"
	"qbwc-webhook-adapter/internal/qbxml"
)

// Normalize projects every record of the kind's response onto its field
// schema, keeping input order. Missing fields take their default; it only
// fails when the answer has the wrong shape.
func Normalize(kind entity.Kind, answer qbxml.Answer) ([]models.NormalizedRecord, error) {
	raw, err := answer.Records(kind.ResponseKey, kind.RecordKey)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", kind.Name, err)
	}
	out := make([]models.NormalizedRecord, 0, len(raw))
	for _, rec := range raw {
		out = append(out, project(kind.Fields, rec))
	}
	return out, nil
}

func project(fields []entity.Field, rec map[string]any) models.NormalizedRecord {
	values := make([]models.FieldValue, 0, len(fields))
	for _, f := range fields {
		s, ok := qbxml.Lookup(rec, f.Path)
		if !ok {
			s = f.Default
		}
		var v any = s
		if f.Bool {
			v = s == "true"
		}
		values = append(values, models.FieldValue{Name: f.Name, Value: v})
	}
	return models.NormalizedRecord{Fields: values}
}

// Batch is one webhook delivery: an event type and its records.
type Batch struct {
	EventType string
	Records   []models.NormalizedRecord
}

// DerivedEvents returns one batch per flag event of the kind whose subset
// of records is non-empty, in flag declaration order.
func DerivedEvents(kind entity.Kind, records []models.NormalizedRecord) []Batch {
	var out []Batch
	for _, fl := range kind.Flags {
		var subset []models.NormalizedRecord
		for _, r := range records {
			if r.Bool(fl.Field) {
				subset = append(subset, r)
			}
		}
		if len(subset) > 0 {
			out = append(out, Batch{EventType: fl.EventType, Records: subset})
		}
	}
	return out
}

// Batches returns every delivery for one normalized answer: the derived
// events first, then the kind's update event with all records. It returns
// nil for an empty record list.
func Batches(kind entity.Kind, records []models.NormalizedRecord) []Batch {
	if len(records) == 0 {
		return nil
	}
	return append(DerivedEvents(kind, records), Batch{EventType: kind.Event, Records: records})
}
