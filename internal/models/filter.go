package models

// Filter is the optional conjunction of report criteria. An empty field
// imposes no constraint. Dates are YYYY-MM-DD calendar dates.
type Filter struct {
	StartDate  string `json:"start_date" validate:"omitempty,max=32"`
	EndDate    string `json:"end_date" validate:"omitempty,max=32"`
	Size       string `json:"size" validate:"omitempty,max=64"`
	Collection string `json:"collection" validate:"omitempty,max=64"`
	Breed      string `json:"breed" validate:"omitempty,max=128"`
	Channel    string `json:"channel" validate:"omitempty,max=64"`
}

// FiltersApplied echoes a Filter in report envelopes, with absent criteria
// rendered as null.
type FiltersApplied struct {
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Size       *string `json:"size"`
	Collection *string `json:"collection"`
	Breed      *string `json:"breed"`
	Channel    *string `json:"channel"`
}

func (f Filter) Applied() *FiltersApplied {
	return &FiltersApplied{
		StartDate:  optional(f.StartDate),
		EndDate:    optional(f.EndDate),
		Size:       optional(f.Size),
		Collection: optional(f.Collection),
		Breed:      optional(f.Breed),
		Channel:    optional(f.Channel),
	}
}

// IsZero reports whether no criterion is set.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
