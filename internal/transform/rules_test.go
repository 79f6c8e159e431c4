package transform

import (
	"strings"
	"testing"
)

// ============================================================================
// CleanPhone Tests
// ============================================================================

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"ten digits formatted", "5551234567", "+1-555-123-4567"},
		{"ten digits with punctuation", "555.123.4567", "+1-555-123-4567"},
		{"international kept as-is", "+44 1632 960961", "+441632960961"},
		{"seven digits stripped not reformatted", "(555) 0300", "5550300"},
		{"already canonical", "+1-555-0100", "+15550100"},
		{"letters stripped", "call 555-0300 now", "5550300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanPhone(tt.input); got != tt.want {
				t.Errorf("CleanPhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanPhone_StableAfterSecondPass(t *testing.T) {
	// The first pass may reformat (dashes added for NANP numbers); the
	// second pass strips them again but keeps the plus prefix, and from
	// there the value must not change.
	once := CleanPhone("5551234567")
	twice := CleanPhone(once)
	if once != "+1-555-123-4567" {
		t.Errorf("first pass = %q, want %q", once, "+1-555-123-4567")
	}
	if twice != "+15551234567" {
		t.Errorf("second pass = %q, want %q", twice, "+15551234567")
	}
	if third := CleanPhone(twice); third != twice {
		t.Errorf("third pass changed the value: %q -> %q", twice, third)
	}
}

func TestNormalizeCompanySize_SpecificHintWins(t *testing.T) {
	// "51-100 people" and "501-1000" both contain the substring "1-10";
	// the longer hint must take the match.
	if got := NormalizeCompanySize("51-100 people"); got != "50-100" {
		t.Errorf("NormalizeCompanySize(%q) = %q, want %q", "51-100 people", got, "50-100")
	}
	if got := NormalizeCompanySize("501-1000"); got != "500-1000" {
		t.Errorf("NormalizeCompanySize(%q) = %q, want %q", "501-1000", got, "500-1000")
	}
}

// ============================================================================
// NormalizeCompanySize Tests
// ============================================================================

func TestNormalizeCompanySize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "unknown"},
		{"1-10 employees", "1-10"},
		{"Startup", "1-10"},
		{"11-50", "10-50"},
		{"51-100 people", "50-100"},
		{"101-500", "100-500"},
		{"501-1000", "500-1000"},
		{"Enterprise", "1000+"},
		{"LARGE company", "1000+"},
		{"medium-ish", "medium-ish"},
	}

	for _, tt := range tests {
		if got := NormalizeCompanySize(tt.input); got != tt.want {
			t.Errorf("NormalizeCompanySize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ============================================================================
// StandardizeAddress Tests
// ============================================================================

func TestStandardizeAddress(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"  123  Business   St  ", "123 Business St"},
		{"456\tCommerce\nAve", "456 Commerce Ave"},
		{"no change", "no change"},
	}

	for _, tt := range tests {
		if got := StandardizeAddress(tt.input); got != tt.want {
			t.Errorf("StandardizeAddress(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ============================================================================
// Validator Tests
// ============================================================================

func TestValidateEmail(t *testing.T) {
	valid := []string{"john.doe@acme.com", "a+b@x.co", "j_d%e@sub.domain.io", " padded@x.co "}
	for _, e := range valid {
		if !ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = false, want true", e)
		}
	}

	invalid := []string{"", "plain", "no@tld", "@x.co", "a@.co", "a b@x.co"}
	for _, e := range invalid {
		if ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = true, want false", e)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"5550300", true},
		{"+1-555-0100", true},
		{"555-03", false},
		{"12345", false},
	}

	for _, tt := range tests {
		if got := ValidatePhone(tt.input); got != tt.want {
			t.Errorf("ValidatePhone(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// ============================================================================
// Merge Tests
// ============================================================================

func TestRuleSet_Merge_MappingOverridesByKey(t *testing.T) {
	merged := DefaultRules().Merge(Overlay{
		FieldMapping: map[string]string{
			"company_name": "companyName",
			"extra_col":    "extra",
		},
	})

	if merged.FieldMapping["company_name"] != "companyName" {
		t.Errorf("company_name -> %q, want override %q", merged.FieldMapping["company_name"], "companyName")
	}
	if merged.FieldMapping["contact_email"] != "email" {
		t.Errorf("contact_email -> %q, default must survive", merged.FieldMapping["contact_email"])
	}
	if merged.FieldMapping["extra_col"] != "extra" {
		t.Errorf("extra_col -> %q, want %q", merged.FieldMapping["extra_col"], "extra")
	}
}

func TestRuleSet_Merge_TransformOverrideKeepsOrder(t *testing.T) {
	upper := func(s string) string { return strings.ToUpper(s) }
	merged := DefaultRules().Merge(Overlay{
		Transforms: map[string]TransformFunc{
			"companySize": upper,
			"city":        upper,
		},
	})

	// Default order phone, companySize, address preserved; new field appended.
	wantOrder := []string{"phone", "companySize", "address", "city"}
	if len(merged.Transforms) != len(wantOrder) {
		t.Fatalf("transforms = %d entries, want %d", len(merged.Transforms), len(wantOrder))
	}
	for i, field := range wantOrder {
		if merged.Transforms[i].Field != field {
			t.Errorf("Transforms[%d].Field = %q, want %q", i, merged.Transforms[i].Field, field)
		}
	}
	if got := merged.Transforms[1].Apply("big"); got != "BIG" {
		t.Errorf("overridden companySize transform = %q, want %q", got, "BIG")
	}
}

func TestRuleSet_Merge_BusinessRulesAppended(t *testing.T) {
	called := false
	merged := DefaultRules().Merge(Overlay{
		BusinessRules: []BusinessRule{func(rec Record) { called = true; rec["custom"] = "yes" }},
	})

	defaults := DefaultRules()
	if len(merged.BusinessRules) != len(defaults.BusinessRules)+1 {
		t.Fatalf("business rules = %d, want %d", len(merged.BusinessRules), len(defaults.BusinessRules)+1)
	}

	rec := Record{"firstName": "John", "lastName": "Doe"}
	for _, rule := range merged.BusinessRules {
		rule(rec)
	}
	if !called {
		t.Error("custom business rule was not invoked")
	}
	if rec["custom"] != "yes" {
		t.Errorf("custom field = %v, want %q", rec["custom"], "yes")
	}
	// Custom rules run after defaults, so contactName is present by then.
	if rec["contactName"] != "John Doe" {
		t.Errorf("contactName = %v, want %q", rec["contactName"], "John Doe")
	}
}
