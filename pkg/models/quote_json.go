package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type quoteJSON struct {
	Company string          `json:"company"`
	Value   json.RawMessage `json:"value"`
	Change  json.RawMessage `json:"change"`
	Time    string          `json:"time"`
}

// MarshalJSON writes finite numbers as JSON numbers, NaN and the infinities
// as the strings "NaN", "+Inf" and "-Inf", and unset numbers as null.
func (q Quote) MarshalJSON() ([]byte, error) {
	return json.Marshal(quoteJSON{
		Company: q.Company,
		Value:   jsonFloat(q.Value),
		Change:  jsonFloat(q.Change),
		Time:    q.Time,
	})
}

// UnmarshalJSON accepts numbers, numeric strings, null and missing fields.
func (q *Quote) UnmarshalJSON(b []byte) error {
	var w quoteJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	value, err := parseJSONFloat(w.Value)
	if err != nil {
		return fmt.Errorf("field \"value\": %w", err)
	}
	change, err := parseJSONFloat(w.Change)
	if err != nil {
		return fmt.Errorf("field \"change\": %w", err)
	}
	*q = Quote{Company: w.Company, Value: value, Change: change, Time: w.Time}
	return nil
}

func jsonFloat(v *float64) json.RawMessage {
	switch {
	case v == nil:
		return json.RawMessage("null")
	case math.IsNaN(*v) || math.IsInf(*v, 0):
		return json.RawMessage(strconv.Quote(FormatFloat(v)))
	}
	return json.RawMessage(strconv.FormatFloat(*v, 'g', -1, 64))
}

func parseJSONFloat(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
