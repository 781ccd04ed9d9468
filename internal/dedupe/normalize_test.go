package dedupe

import "testing"

// ============================================================================
// Per-field normalizer Tests
// ============================================================================

func TestNormalizers(t *testing.T) {
	tests := []struct {
		name   string
		fn     Normalizer
		input  string
		want   string
		wantOK bool
	}{
		{name: "phone strips punctuation", fn: NormalizePhone, input: "987-654-3210", want: "9876543210", wantOK: true},
		{name: "phone strips country prefix symbols", fn: NormalizePhone, input: "+91 (987) 654 3210", want: "919876543210", wantOK: true},
		{name: "phone empty", fn: NormalizePhone, input: "", wantOK: false},
		{name: "phone without digits", fn: NormalizePhone, input: "n/a", wantOK: false},
		{name: "email lowercases and trims", fn: NormalizeEmail, input: "  A@X.Com ", want: "a@x.com", wantOK: true},
		{name: "email blank", fn: NormalizeEmail, input: "   ", wantOK: false},
		{name: "address collapses whitespace", fn: NormalizeAddress, input: "  12  MG   Road\tPune ", want: "12 mg road pune", wantOK: true},
		{name: "address newline collapsed", fn: NormalizeAddress, input: "Flat 4\nBlock B", want: "flat 4 block b", wantOK: true},
		{name: "pan uppercases", fn: NormalizePAN, input: " abcde1234f ", want: "ABCDE1234F", wantOK: true},
		{name: "vehicle removes all whitespace", fn: NormalizeVehicleNumber, input: "mh 12 ab  1234", want: "MH12AB1234", wantOK: true},
		{name: "vehicle tabs removed", fn: NormalizeVehicleNumber, input: "ka\t01\tx 9", want: "KA01X9", wantOK: true},
		{name: "vehicle blank", fn: NormalizeVehicleNumber, input: " \t ", wantOK: false},
		{name: "generic lowercases and trims", fn: NormalizeGeneric, input: " Acme Logistics ", want: "acme logistics", wantOK: true},
		{name: "generic keeps inner spacing", fn: NormalizeGeneric, input: "Acme  Logistics", want: "acme  logistics", wantOK: true},
		{name: "generic empty", fn: NormalizeGeneric, input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.fn(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestNormalizers_Idempotent ensures normalize(normalize(x)) == normalize(x).
func TestNormalizers_Idempotent(t *testing.T) {
	inputs := []string{
		"987-654-3210",
		"  A@X.Com ",
		"  12  MG   Road\tPune ",
		"abcde1234f",
		"mh 12 ab 1234",
		" Acme Logistics ",
		"Ünïcödé  Strasse",
		"0",
	}

	fns := map[string]Normalizer{
		"phone":   NormalizePhone,
		"email":   NormalizeEmail,
		"address": NormalizeAddress,
		"pan":     NormalizePAN,
		"vehicle": NormalizeVehicleNumber,
		"generic": NormalizeGeneric,
	}

	for name, fn := range fns {
		for _, in := range inputs {
			once, ok := fn(in)
			if !ok {
				continue
			}
			twice, ok := fn(once)
			if !ok {
				t.Errorf("%s: second pass of %q dropped the value", name, in)
				continue
			}
			if twice != once {
				t.Errorf("%s: normalize(normalize(%q)) = %q, want %q", name, in, twice, once)
			}
		}
	}
}

func TestNormalizerFor(t *testing.T) {
	got, _ := NormalizerFor(FieldPhone)("98-76")
	if got != "9876" {
		t.Errorf("NormalizerFor(phone) = %q, want %q", got, "9876")
	}

	got, _ = NormalizerFor(FieldKey("unknown"))(" MiXeD ")
	if got != "mixed" {
		t.Errorf("NormalizerFor(unknown) = %q, want generic %q", got, "mixed")
	}
}

func TestRegisterNormalizer(t *testing.T) {
	key := FieldKey("testOnlyUpper")
	RegisterNormalizer(key, NormalizePAN)
	t.Cleanup(func() {
		normalizersMu.Lock()
		delete(normalizers, key)
		normalizersMu.Unlock()
	})

	got, _ := NormalizerFor(key)(" abc ")
	if got != "ABC" {
		t.Errorf("registered normalizer = %q, want %q", got, "ABC")
	}
}
