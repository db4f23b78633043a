package domain

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout renders record timestamps the way the stored info.yaml files
// have always been written (pt-BR locale).
const DateLayout = "02/01/2006, 15:04:05"

// Stamp is a point in time stored both human readable and as unix millis.
type Stamp struct {
	Date string `yaml:"Date"`
	Unix int64  `yaml:"Unix"`
}

// NewStamp captures t.
func NewStamp(t time.Time) Stamp {
	return Stamp{
		Date: FormatDate(t),
		Unix: t.UnixMilli(),
	}
}

// Time returns the stamp as a time.Time. Zero stamps yield the zero time.
func (s Stamp) Time() time.Time {
	if s.Unix == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.Unix)
}

// Record is the print history persisted next to a stored document.
//
// Absent or falsy fields decode to their zero values: a missing, null, empty,
// false or non-numeric TimesPrinted is 0 and a missing or non-list
// PrintedDates is empty. Created is nil for records synthesized by older
// versions on first print.
type Record struct {
	FileID       string   `yaml:"FileId"`
	Created      *Stamp   `yaml:"Created,omitempty"`
	Updated      *Stamp   `yaml:"Updated,omitempty"`
	TimesPrinted int      `yaml:"TimesPrinted"`
	LastPrinted  string   `yaml:"LastPrinted,omitempty"`
	PrintedDates []string `yaml:"PrintedDates,omitempty"`
}

// NewRecord returns a never-printed record created at t.
func NewRecord(id Identifier, t time.Time) Record {
	created := NewStamp(t)
	updated := created

	return Record{
		FileID:  id.String(),
		Created: &created,
		Updated: &updated,
	}
}

// UnmarshalYAML decodes a record of any prior shape.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		FileID       string    `yaml:"FileId"`
		Created      *Stamp    `yaml:"Created"`
		Updated      *Stamp    `yaml:"Updated"`
		TimesPrinted yaml.Node `yaml:"TimesPrinted"`
		LastPrinted  string    `yaml:"LastPrinted"`
		PrintedDates yaml.Node `yaml:"PrintedDates"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*r = Record{
		FileID:       raw.FileID,
		Created:      raw.Created,
		Updated:      raw.Updated,
		TimesPrinted: decodeCount(&raw.TimesPrinted),
		LastPrinted:  raw.LastPrinted,
		PrintedDates: decodeDates(&raw.PrintedDates),
	}
	return nil
}

func decodeCount(node *yaml.Node) int {
	if node.Kind != yaml.ScalarNode {
		return 0
	}

	switch node.ShortTag() {
	case "!!int":
		var n int
		if err := node.Decode(&n); err == nil && n > 0 {
			return n
		}
	case "!!float":
		var f float64
		if err := node.Decode(&f); err == nil && f >= 1 && f < math.MaxInt32 {
			return int(f)
		}
	case "!!bool":
		if b, err := strconv.ParseBool(node.Value); err == nil && b {
			return 1
		}
	case "!!str":
		if n, err := strconv.Atoi(node.Value); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func decodeDates(node *yaml.Node) []string {
	if node.Kind != yaml.SequenceNode {
		return nil
	}

	dates := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode && item.ShortTag() != "!!null" {
			dates = append(dates, item.Value)
		}
	}
	return dates
}

// MarkPrinted adds one print at t.
func (r *Record) MarkPrinted(t time.Time) {
	if r.TimesPrinted < 0 {
		r.TimesPrinted = 0
	}
	stamp := NewStamp(t)
	r.Updated = &stamp
	r.TimesPrinted++
	r.LastPrinted = stamp.Date
	r.PrintedDates = append(r.PrintedDates, stamp.Date)
}

// Printed reports whether at least one print was recorded.
func (r Record) Printed() bool {
	return r.TimesPrinted > 0
}

// Marshal encodes the record as YAML.
func (r Record) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a YAML record.
func UnmarshalRecord(data []byte) (Record, error) {
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if rec.TimesPrinted < 0 {
		rec.TimesPrinted = 0
	}
	return rec, nil
}

// FormatDate renders t with DateLayout in t's location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
