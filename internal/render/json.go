package render

import (
	"encoding/json"

	"github.com/dshills/storytrace/internal/schema"
)

type jsonRenderer struct{}

type jsonReport struct {
	Audit    *schema.AggregateResult `json:"audit"`
	Coverage *schema.CoverageReport  `json:"coverage"`
}

func (r *jsonRenderer) Render(result *schema.AggregateResult, cov *schema.CoverageReport) ([]byte, error) {
	return json.MarshalIndent(jsonReport{Audit: result, Coverage: cov}, "", "  ")
}
