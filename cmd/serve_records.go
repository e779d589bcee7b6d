package main

import (
	"time"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/model"
)

type fieldJSON struct {
	Source     *string `json:"source"`
	Extracted  *string `json:"extracted"`
	Validation string  `json:"validation,omitempty"`
}

type recordJSON struct {
	ID           int64                `json:"id"`
	CreationDate time.Time            `json:"creation_date"`
	Fields       map[string]fieldJSON `json:"fields"`
}

func recordsToJSON(records []model.Record) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for i := range records {
		rec := &records[i]
		fields := make(map[string]fieldJSON, 6)
		for _, spec := range fieldspec.All() {
			state := rec.Field(spec.Field)
			fields[spec.SourceColumn] = fieldJSON{
				Source:     state.Source,
				Extracted:  state.Extracted,
				Validation: string(state.Status),
			}
		}
		out = append(out, recordJSON{
			ID:           rec.ID,
			CreationDate: rec.CreationDate,
			Fields:       fields,
		})
	}
	return out
}
