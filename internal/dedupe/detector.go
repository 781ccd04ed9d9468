package dedupe

// detector.go implements duplicate detection for a single record.
//
// Detection is a naive linear scan: for each enabled field the candidate's
// normalized value is compared with the same field of every reference record,
// so cost is O(len(reference) * enabled fields). The detector is stateless;
// callers own the reference set and the configuration.

import "fmt"

// EntryKind discriminates the three kinds of findings.
type EntryKind string

const (
	KindStandard  EntryKind = "standard"
	KindCustom    EntryKind = "custom"
	KindComposite EntryKind = "composite"
)

// Match identifies a reference record that matched a candidate field.
type Match struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// DuplicateEntry is one duplicated field of a candidate record.
type DuplicateEntry struct {
	Kind     EntryKind `json:"kind"`
	Field    string    `json:"field"` // FieldKey, custom field id, or CompositeField
	Label    string    `json:"label"`
	Value    string    `json:"value"` // Original, unnormalized value
	Matches  []Match   `json:"matches"`
	Severity Severity  `json:"severity"`
}

// Reason renders the entry for failure reports:
// "Phone Number: 987-654-3210 (Found in 1 existing record(s))".
func (e DuplicateEntry) Reason() string {
	return fmt.Sprintf("%s: %s (Found in %d existing record(s))", e.Label, e.Value, len(e.Matches))
}

// Reference is one entry of a reference set. Record is what the detector
// compares; ID and Source are only shown in matches and fall back to the
// record's own id and source properties when empty.
type Reference struct {
	Record Record
	ID     string
	Source string
}

// ReferencesOf wraps records that carry their own identity.
func ReferencesOf(records []Record) []Reference {
	out := make([]Reference, len(records))
	for i, r := range records {
		out[i] = Reference{Record: r}
	}
	return out
}

// Result is the outcome of checking one record.
type Result struct {
	IsDuplicate bool             `json:"isDuplicate"`
	Duplicates  []DuplicateEntry `json:"duplicates"`
	CanProceed  bool             `json:"canProceed"`
}

// Detect checks record against reference using cfg.
//
// Enabled standard fields are checked in table order, then enabled custom
// fields, then the composite fleet check, which runs regardless of toggles.
// CanProceed is false only when cfg.StrictMode is set and a duplicate exists.
func Detect(record Record, reference []Record, cfg Config) Result {
	return DetectAgainst(record, ReferencesOf(reference), cfg)
}

// DetectAgainst is Detect over a reference set with explicit match identities.
func DetectAgainst(record Record, reference []Reference, cfg Config) Result {
	var entries []DuplicateEntry

	for _, f := range standardFields {
		if !cfg.EnabledFields[f.Key] {
			continue
		}
		if e, ok := detectField(record, reference, f.Property, NormalizerFor(f.Key)); ok {
			e.Kind = KindStandard
			e.Field = string(f.Key)
			e.Label = f.Label
			e.Severity = f.Severity
			entries = append(entries, e)
		}
	}

	for _, cf := range cfg.CustomFields {
		if !cf.Enabled {
			continue
		}
		if e, ok := detectField(record, reference, cf.Property(), NormalizeGeneric); ok {
			e.Kind = KindCustom
			e.Field = cf.ID
			e.Label = cf.Label()
			e.Severity = cf.Severity
			if e.Severity == "" {
				e.Severity = SeverityMedium
			}
			entries = append(entries, e)
		}
	}

	if e, ok := detectFleet(record, reference); ok {
		entries = append(entries, e)
	}

	isDup := len(entries) > 0
	return Result{
		IsDuplicate: isDup,
		Duplicates:  entries,
		CanProceed:  !cfg.StrictMode || !isDup,
	}
}

// detectFleet is the composite check: a reference record matches only when
// both its company and its vehicle registration number equal the candidate's
// after normalization. It ignores per-field enablement.
func detectFleet(record Record, reference []Reference) (DuplicateEntry, bool) {
	rawCompany := record[PropCompany]
	rawVehicle := record[PropVehicle]

	company, ok := NormalizeGeneric(rawCompany)
	if !ok {
		return DuplicateEntry{}, false
	}
	vehicle, ok := NormalizeVehicleNumber(rawVehicle)
	if !ok {
		return DuplicateEntry{}, false
	}

	var matches []Match
	for _, ref := range reference {
		rc, ok := NormalizeGeneric(ref.Record[PropCompany])
		if !ok || rc != company {
			continue
		}
		rv, ok := NormalizeVehicleNumber(ref.Record[PropVehicle])
		if !ok || rv != vehicle {
			continue
		}
		matches = append(matches, matchOf(ref))
	}

	if len(matches) == 0 {
		return DuplicateEntry{}, false
	}

	return DuplicateEntry{
		Kind:     KindComposite,
		Field:    CompositeField,
		Label:    CompositeLabel,
		Value:    rawCompany + " / " + rawVehicle,
		Matches:  matches,
		Severity: SeverityCritical,
	}, true
}

// detectField scans reference for records whose property normalizes to the
// same value as record's. Kind, Field, Label and Severity are left for the
// caller to fill.
func detectField(record Record, reference []Reference, property string, normalize Normalizer) (DuplicateEntry, bool) {
	raw, present := record[property]
	if !present {
		return DuplicateEntry{}, false
	}
	want, ok := normalize(raw)
	if !ok {
		return DuplicateEntry{}, false
	}

	var matches []Match
	for _, ref := range reference {
		got, ok := normalize(ref.Record[property])
		if ok && got == want {
			matches = append(matches, matchOf(ref))
		}
	}

	if len(matches) == 0 {
		return DuplicateEntry{}, false
	}
	return DuplicateEntry{Value: raw, Matches: matches}, true
}

func matchOf(ref Reference) Match {
	m := Match{
		ID:     ref.ID,
		Name:   ref.Record.DisplayName(),
		Source: ref.Source,
	}
	if m.ID == "" {
		m.ID = ref.Record.ID()
	}
	if m.Source == "" {
		m.Source = ref.Record.Source()
	}
	return m
}
