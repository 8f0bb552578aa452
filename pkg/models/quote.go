package models

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
)

// Quote is a single market quote observation for a company.
// The zero value is a quote with every field unset. A nil Value or Change
// is unset, which is distinct from zero. Any float64 is accepted, including
// NaN and the infinities.
type Quote struct {
	Company string   `json:"company"`
	Value   *float64 `json:"value"`
	Change  *float64 `json:"change"`
	Time    string   `json:"time"`
}

// NewQuote returns a quote for company with value, change and time unset.
func NewQuote(company string) *Quote {
	return &Quote{Company: company}
}

func (q *Quote) SetCompany(company string) { q.Company = company }
func (q *Quote) SetTime(t string)          { q.Time = t }

func (q *Quote) SetValue(v float64)  { q.Value = &v }
func (q *Quote) SetChange(v float64) { q.Change = &v }

func (q *Quote) ClearValue()  { q.Value = nil }
func (q *Quote) ClearChange() { q.Change = nil }

// Equal compares field by field. Numeric fields are equal when both are
// unset, both hold the same number, or both hold NaN.
func (q *Quote) Equal(o *Quote) bool {
	if q == nil || o == nil {
		return q == o
	}
	return q.Company == o.Company &&
		floatEqual(q.Value, o.Value) &&
		floatEqual(q.Change, o.Change) &&
		q.Time == o.Time
}

// Hash is consistent with Equal.
func (q *Quote) Hash() uint64 {
	h := fnv.New64a()
	if q == nil {
		return h.Sum64()
	}
	for _, part := range []string{q.Company, FormatFloat(q.Value), FormatFloat(q.Change), q.Time} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func (q *Quote) String() string {
	if q == nil {
		return "Quote(nil)"
	}
	return fmt.Sprintf("Quote(company=%s, value=%s, change=%s, time=%s)",
		q.Company, FormatFloat(q.Value), FormatFloat(q.Change), q.Time)
}

// Clone returns an independent copy, safe to hand to another goroutine.
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	c := *q
	c.Value = cloneFloat(q.Value)
	c.Change = cloneFloat(q.Change)
	return &c
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b || (math.IsNaN(*a) && math.IsNaN(*b))
}

// FormatFloat renders v in its shortest exact form, "NaN", "+Inf", "-Inf"
// or "null" when unset. Negative zero renders as "0" since it equals zero.
func FormatFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	if *v == 0 {
		return "0"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
