package dedupe

// normalize.go canonicalizes field values before comparison.
//
// Every normalizer returns ok=false for a value that carries no data (empty,
// blank, or nothing left after canonicalization). A field with ok=false is
// skipped entirely: it can neither match nor be matched.
//
// Normalizers must be idempotent. Re-normalizing a normalized value is a no-op,
// which lets stored values be compared whether or not they were canonicalized
// on the way in.

import (
	"strings"
	"sync"
	"unicode"
)

// Normalizer canonicalizes a raw value. ok is false when the value should be
// skipped for comparison.
type Normalizer func(raw string) (normalized string, ok bool)

var (
	normalizers = map[FieldKey]Normalizer{
		FieldPhone:          NormalizePhone,
		FieldEmail:          NormalizeEmail,
		FieldAddress:        NormalizeAddress,
		FieldPAN:            NormalizePAN,
		FieldVehicleNumber:  NormalizeVehicleNumber,
		FieldAadhaar:        NormalizeGeneric,
		FieldPassport:       NormalizeGeneric,
		FieldDrivingLicense: NormalizeGeneric,
		FieldFleetCompany:   NormalizeGeneric,
	}
	normalizersMu sync.RWMutex
)

// NormalizerFor returns the normalizer registered for key, or
// [NormalizeGeneric] when none is registered.
func NormalizerFor(key FieldKey) Normalizer {
	normalizersMu.RLock()
	defer normalizersMu.RUnlock()

	if n, ok := normalizers[key]; ok {
		return n
	}
	return NormalizeGeneric
}

// RegisterNormalizer installs a normalizer for key, replacing any existing one.
// Call it during program initialization, not while batches are running.
func RegisterNormalizer(key FieldKey, n Normalizer) {
	normalizersMu.Lock()
	defer normalizersMu.Unlock()
	normalizers[key] = n
}

// NormalizePhone keeps digits only: "+91 98765-43210" -> "919876543210".
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return nonEmpty(b.String())
}

// NormalizeEmail lowercases and trims.
func NormalizeEmail(raw string) (string, bool) {
	return nonEmpty(strings.TrimSpace(strings.ToLower(raw)))
}

// NormalizeAddress lowercases, trims and collapses internal whitespace runs
// to a single space.
func NormalizeAddress(raw string) (string, bool) {
	return nonEmpty(strings.Join(strings.Fields(strings.ToLower(raw)), " "))
}

// NormalizePAN uppercases and trims.
func NormalizePAN(raw string) (string, bool) {
	return nonEmpty(strings.TrimSpace(strings.ToUpper(raw)))
}

// NormalizeVehicleNumber uppercases and removes all whitespace, so
// "mh 12 ab 1234" and "MH12AB1234" compare equal.
func NormalizeVehicleNumber(raw string) (string, bool) {
	upper := strings.ToUpper(raw)
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, upper)
	return nonEmpty(stripped)
}

// NormalizeGeneric lowercases and trims. Used for custom fields, the fleet
// company and any field without a dedicated rule.
func NormalizeGeneric(raw string) (string, bool) {
	return nonEmpty(strings.TrimSpace(strings.ToLower(raw)))
}

func nonEmpty(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	return s, true
}
