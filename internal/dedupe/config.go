package dedupe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CustomField is a user-defined deduplication field.
type CustomField struct {
	ID       string   `json:"id" toml:"id"`
	Name     string   `json:"name" toml:"name"`
	Key      string   `json:"key,omitempty" toml:"key,omitempty"` // Record property; defaults to Name
	Severity Severity `json:"severity" toml:"severity"`
	Enabled  bool     `json:"enabled" toml:"enabled"`
}

// Property returns the record property compared for this field.
func (f CustomField) Property() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

// Label returns the display label used in failure reasons.
func (f CustomField) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Key
}

// Config is the deduplication policy for one batch run.
// Treat it as a value: the importer clones it at the start of every run.
type Config struct {
	EnabledFields map[FieldKey]bool `json:"enabledFields" toml:"enabled_fields"`
	CustomFields  []CustomField     `json:"customFields" toml:"custom_fields"`
	StrictMode    bool              `json:"strictMode" toml:"strict_mode"`
}

// DefaultConfig returns the documented fallback used when no settings exist
// or the persisted settings are unreadable.
func DefaultConfig() Config {
	return Config{
		EnabledFields: map[FieldKey]bool{
			FieldPhone:          true,
			FieldEmail:          true,
			FieldAddress:        false,
			FieldPAN:            true,
			FieldVehicleNumber:  true,
			FieldAadhaar:        true,
			FieldPassport:       true,
			FieldDrivingLicense: false,
			FieldFleetCompany:   false,
		},
		CustomFields: []CustomField{},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := Config{
		EnabledFields: make(map[FieldKey]bool, len(c.EnabledFields)),
		CustomFields:  make([]CustomField, len(c.CustomFields)),
		StrictMode:    c.StrictMode,
	}
	for k, v := range c.EnabledFields {
		out.EnabledFields[k] = v
	}
	copy(out.CustomFields, c.CustomFields)
	return out
}

// Enabled reports whether a standard field is switched on.
func (c Config) Enabled(key FieldKey) bool {
	return c.EnabledFields[key]
}

// EnabledCount returns the number of enabled standard and custom fields.
func (c Config) EnabledCount() int {
	n := 0
	for _, f := range standardFields {
		if c.EnabledFields[f.Key] {
			n++
		}
	}
	for _, cf := range c.CustomFields {
		if cf.Enabled {
			n++
		}
	}
	return n
}

// WithDefaults fills in omitted custom field attributes: a generated ID, a
// medium severity and a missing standard-field toggle set to false.
func (c Config) WithDefaults() Config {
	out := c.Clone()
	for _, f := range standardFields {
		if _, ok := out.EnabledFields[f.Key]; !ok {
			out.EnabledFields[f.Key] = false
		}
	}
	for i := range out.CustomFields {
		cf := &out.CustomFields[i]
		cf.Name = strings.TrimSpace(cf.Name)
		cf.Key = strings.TrimSpace(cf.Key)
		if cf.ID == "" {
			cf.ID = uuid.NewString()
		}
		if cf.Severity == "" {
			cf.Severity = SeverityMedium
		}
	}
	return out
}

// Validate checks the invariants of a configuration: only known standard
// field keys, and custom fields with a unique id, a property to compare and a
// known severity. All problems are reported at once.
func (c Config) Validate() error {
	var errs []error

	for key := range c.EnabledFields {
		if _, ok := LookupField(key); !ok {
			errs = append(errs, fmt.Errorf("unknown field %q", key))
		}
	}

	seen := make(map[string]bool, len(c.CustomFields))
	for i, cf := range c.CustomFields {
		if cf.ID == "" {
			errs = append(errs, fmt.Errorf("custom field %d: id is required", i))
		} else if seen[cf.ID] {
			errs = append(errs, fmt.Errorf("custom field %d: duplicate id %q", i, cf.ID))
		}
		seen[cf.ID] = true

		if cf.Property() == "" {
			errs = append(errs, fmt.Errorf("custom field %d: name or key is required", i))
		}
		if !cf.Severity.Valid() {
			errs = append(errs, fmt.Errorf("custom field %d: invalid severity %q", i, cf.Severity))
		}
	}

	return errors.Join(errs...)
}
