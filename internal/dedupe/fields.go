// Package dedupe detects duplicate records during bulk import.
//
// Detection is exact-match-after-normalization: every configured field is
// canonicalized with its [Normalizer] and compared against the same field of
// every record in a reference set. There is no fuzzy matching.
//
// # Fields
//
// Standard fields are fixed. Each [FieldKey] maps to one record property and
// one [Severity]:
//
//	phone          -> phone                      high
//	email          -> email                      high
//	address        -> address                    medium
//	panNumber      -> panNumber                  critical
//	vehicleNumber  -> vehicleRegistrationNumber  high
//	aadhaar        -> aadhaarNumber              critical
//	passport       -> passportNumber             critical
//	drivingLicense -> drivingLicense             medium
//	fleetCompany   -> company                    critical
//
// Custom fields carry their own record property and severity.
//
// # Composite check
//
// The fleet check (company AND vehicle number) always runs, whatever the
// per-field toggles say.
package dedupe

// FieldKey identifies a standard deduplication field.
type FieldKey string

const (
	FieldPhone          FieldKey = "phone"
	FieldEmail          FieldKey = "email"
	FieldAddress        FieldKey = "address"
	FieldPAN            FieldKey = "panNumber"
	FieldVehicleNumber  FieldKey = "vehicleNumber"
	FieldAadhaar        FieldKey = "aadhaar"
	FieldPassport       FieldKey = "passport"
	FieldDrivingLicense FieldKey = "drivingLicense"
	FieldFleetCompany   FieldKey = "fleetCompany"
)

// Severity is an informational tag on a finding. It never changes detection.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Record properties used by the composite check and for match display.
const (
	PropID      = "id"
	PropName    = "name"
	PropSource  = "source"
	PropCompany = "company"
	PropVehicle = "vehicleRegistrationNumber"
)

// FieldSpec describes one standard field.
type FieldSpec struct {
	Key      FieldKey `json:"key"`
	Property string   `json:"property"` // Record property compared for this field
	Label    string   `json:"label"`    // Display label used in failure reasons
	Severity Severity `json:"severity"`
}

// standardFields is ordered; detection emits entries in this order.
var standardFields = []FieldSpec{
	{Key: FieldPhone, Property: "phone", Label: "Phone Number", Severity: SeverityHigh},
	{Key: FieldEmail, Property: "email", Label: "Email", Severity: SeverityHigh},
	{Key: FieldAddress, Property: "address", Label: "Address", Severity: SeverityMedium},
	{Key: FieldPAN, Property: "panNumber", Label: "PAN Number", Severity: SeverityCritical},
	{Key: FieldVehicleNumber, Property: PropVehicle, Label: "Vehicle Number", Severity: SeverityHigh},
	{Key: FieldAadhaar, Property: "aadhaarNumber", Label: "Aadhaar Number", Severity: SeverityCritical},
	{Key: FieldPassport, Property: "passportNumber", Label: "Passport Number", Severity: SeverityCritical},
	{Key: FieldDrivingLicense, Property: "drivingLicense", Label: "Driving License", Severity: SeverityMedium},
	{Key: FieldFleetCompany, Property: PropCompany, Label: "Fleet Company", Severity: SeverityCritical},
}

// StandardFields returns the standard field table in detection order.
func StandardFields() []FieldSpec {
	out := make([]FieldSpec, len(standardFields))
	copy(out, standardFields)
	return out
}

// LookupField returns the definition of a standard field key.
func LookupField(key FieldKey) (FieldSpec, bool) {
	for _, f := range standardFields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// CompositeLabel is the display label of the fleet composite finding.
const CompositeLabel = "Fleet (Company + Vehicle)"

// CompositeField is the Field value of the fleet composite finding.
const CompositeField = "fleet"
