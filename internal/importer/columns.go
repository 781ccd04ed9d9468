package importer

// columns.go maps spreadsheet headers to internal field names.
//
// Each header is matched case-insensitively (Unicode case folding):
//  1. against the display names of the column catalog,
//  2. then against the internal field names, for sources that already use them.
//
// Headers that match neither are kept under their trimmed text so custom
// dedupe fields can still reference them.

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// Column is one importable column.
type Column struct {
	Field   string   // Internal field name (record property)
	Label   string   // Display name shown in templates and exports
	Aliases []string // Additional display names accepted on import
}

// Columns is the import catalog for customer and policy records.
var Columns = []Column{
	{Field: "name", Label: "Customer Name", Aliases: []string{"Name", "Full Name"}},
	{Field: "phone", Label: "Phone Number", Aliases: []string{"Phone", "Mobile", "Mobile Number"}},
	{Field: "email", Label: "Email", Aliases: []string{"Email Address", "E-mail"}},
	{Field: "address", Label: "Address"},
	{Field: "panNumber", Label: "PAN Number", Aliases: []string{"PAN"}},
	{Field: "aadhaarNumber", Label: "Aadhaar Number", Aliases: []string{"Aadhaar"}},
	{Field: "passportNumber", Label: "Passport Number", Aliases: []string{"Passport"}},
	{Field: "drivingLicense", Label: "Driving License", Aliases: []string{"DL Number"}},
	{Field: dedupe.PropVehicle, Label: "Vehicle Registration Number", Aliases: []string{"Vehicle Number", "Registration Number"}},
	{Field: dedupe.PropCompany, Label: "Company", Aliases: []string{"Fleet Company", "Company Name"}},
	{Field: "policyNumber", Label: "Policy Number", Aliases: []string{"Policy No"}},
	{Field: "policyType", Label: "Policy Type"},
}

// foldKey case-folds a header. Casers are stateful, so each MapHeaders call
// creates its own.
func foldKey(c cases.Caser, s string) string {
	return c.String(strings.TrimSpace(s))
}

// HeaderMapping maps a header position to its internal field name.
type HeaderMapping []string

// MapHeaders resolves each header to an internal field name.
// Blank headers map to "" and their cells are dropped.
func MapHeaders(headers []string) HeaderMapping {
	c := cases.Fold()
	byLabel := make(map[string]string)
	byField := make(map[string]string)
	for _, col := range Columns {
		byLabel[foldKey(c, col.Label)] = col.Field
		for _, a := range col.Aliases {
			if _, taken := byLabel[foldKey(c, a)]; !taken {
				byLabel[foldKey(c, a)] = col.Field
			}
		}
		byField[foldKey(c, col.Field)] = col.Field
	}

	out := make(HeaderMapping, len(headers))
	for i, h := range headers {
		key := foldKey(c, h)
		switch {
		case key == "":
			out[i] = ""
		case byLabel[key] != "":
			out[i] = byLabel[key]
		case byField[key] != "":
			out[i] = byField[key]
		default:
			out[i] = strings.TrimSpace(h)
		}
	}
	return out
}

// MapRows converts raw rows into records using the header mapping.
// Blank cells are omitted so that they read as "no value". Row order is kept,
// so the i-th record is batch row i+1.
func MapRows(headers []string, rows [][]string) []dedupe.Record {
	mapping := MapHeaders(headers)
	out := make([]dedupe.Record, len(rows))
	for i, row := range rows {
		rec := make(dedupe.Record, len(mapping))
		for pos, field := range mapping {
			if field == "" || pos >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[pos])
			if cell == "" {
				continue
			}
			if _, exists := rec[field]; exists {
				continue // first column wins when two headers map to one field
			}
			rec[field] = cell
		}
		out[i] = rec
	}
	return out
}

// LabelFor returns the display label of an internal field, or the field
// itself when it is not in the catalog.
func LabelFor(field string) string {
	for _, c := range Columns {
		if c.Field == field {
			return c.Label
		}
	}
	return field
}
