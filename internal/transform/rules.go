// Package transform maps raw CSV rows into canonical customer records via a
// configurable rule set: a field mapping table, per-field transform and
// validator functions, and an ordered list of business rules. Custom rules
// merge over the defaults by key; they never replace the whole table.
package transform

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Record is a canonical customer record. Values are strings except for the
// nested metadata map added by the default business rules. A Record is never
// mutated after TransformBatch returns it.
type Record map[string]any

// TransformFunc rewrites a single field value.
type TransformFunc func(string) string

// ValidateFunc reports whether a field value is acceptable.
type ValidateFunc func(string) bool

// BusinessRule mutates a record in place. Rules run in list order after
// field mapping and field transforms.
type BusinessRule func(Record)

// FieldTransform pairs an output field with its transform. Slice order is
// application order.
type FieldTransform struct {
	Field string
	Apply TransformFunc
}

// FieldValidator pairs an output field with its validator. Slice order is
// the order validation messages appear in.
type FieldValidator struct {
	Field string
	Check ValidateFunc
}

// RuleSet is the full transformation configuration for one run.
type RuleSet struct {
	FieldMapping  map[string]string
	Transforms    []FieldTransform
	Validators    []FieldValidator
	BusinessRules []BusinessRule
}

// Overlay holds custom rules merged over the defaults: mappings, transforms
// and validators override by key, business rules are appended after the
// defaults.
type Overlay struct {
	FieldMapping  map[string]string
	Transforms    map[string]TransformFunc
	Validators    map[string]ValidateFunc
	BusinessRules []BusinessRule
}

// RequiredRecordFields must be present and non-blank on every canonical
// record.
var RequiredRecordFields = []string{"name", "email", "firstName", "lastName"}

// nowFunc supplies timestamps for the createdAt business rule.
// Overridable in tests.
var nowFunc = time.Now

var (
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonPhoneChars  = regexp.MustCompile(`[^\d+]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// DefaultRules returns the built-in customer rule set.
func DefaultRules() RuleSet {
	return RuleSet{
		FieldMapping: map[string]string{
			"company_name":       "name",
			"contact_email":      "email",
			"contact_first_name": "firstName",
			"contact_last_name":  "lastName",
			"phone_number":       "phone",
			"address":            "address",
			"city":               "city",
			"country":            "country",
			"postal_code":        "postalCode",
			"tax_id":             "taxId",
			"company_size":       "companySize",
		},
		Transforms: []FieldTransform{
			{Field: "phone", Apply: CleanPhone},
			{Field: "companySize", Apply: NormalizeCompanySize},
			{Field: "address", Apply: StandardizeAddress},
		},
		Validators: []FieldValidator{
			{Field: "email", Check: ValidateEmail},
			{Field: "phone", Check: ValidatePhone},
		},
		BusinessRules: []BusinessRule{
			addContactName,
			addTimestamp,
			addMetadata,
		},
	}
}

// Merge returns a new RuleSet with the overlay applied over r.
func (r RuleSet) Merge(o Overlay) RuleSet {
	merged := RuleSet{
		FieldMapping: make(map[string]string, len(r.FieldMapping)+len(o.FieldMapping)),
	}

	for src, dst := range r.FieldMapping {
		merged.FieldMapping[src] = dst
	}
	for src, dst := range o.FieldMapping {
		merged.FieldMapping[src] = dst
	}

	merged.Transforms = mergeTransforms(r.Transforms, o.Transforms)
	merged.Validators = mergeValidators(r.Validators, o.Validators)

	merged.BusinessRules = append(merged.BusinessRules, r.BusinessRules...)
	merged.BusinessRules = append(merged.BusinessRules, o.BusinessRules...)

	return merged
}

func mergeTransforms(base []FieldTransform, overrides map[string]TransformFunc) []FieldTransform {
	merged := make([]FieldTransform, 0, len(base)+len(overrides))
	used := make(map[string]bool, len(overrides))

	for _, ft := range base {
		if fn, ok := overrides[ft.Field]; ok {
			merged = append(merged, FieldTransform{Field: ft.Field, Apply: fn})
			used[ft.Field] = true
		} else {
			merged = append(merged, ft)
		}
	}

	// New fields append in sorted order so application order is stable.
	extra := make([]string, 0, len(overrides))
	for field := range overrides {
		if !used[field] {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	for _, field := range extra {
		merged = append(merged, FieldTransform{Field: field, Apply: overrides[field]})
	}

	return merged
}

func mergeValidators(base []FieldValidator, overrides map[string]ValidateFunc) []FieldValidator {
	merged := make([]FieldValidator, 0, len(base)+len(overrides))
	used := make(map[string]bool, len(overrides))

	for _, fv := range base {
		if fn, ok := overrides[fv.Field]; ok {
			merged = append(merged, FieldValidator{Field: fv.Field, Check: fn})
			used[fv.Field] = true
		} else {
			merged = append(merged, fv)
		}
	}

	extra := make([]string, 0, len(overrides))
	for field := range overrides {
		if !used[field] {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	for _, field := range extra {
		merged = append(merged, FieldValidator{Field: field, Check: overrides[field]})
	}

	return merged
}

// ============================================================================
// Default field transforms
// ============================================================================

// CleanPhone strips everything but digits and '+'. A number already carrying
// a country prefix stays as-is; exactly 10 digits are formatted as a NANP
// number; anything else keeps the stripped digits.
func CleanPhone(phone string) string {
	if phone == "" {
		return ""
	}
	cleaned := nonPhoneChars.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if len(cleaned) == 10 {
		return fmt.Sprintf("+1-%s-%s-%s", cleaned[:3], cleaned[3:6], cleaned[6:])
	}
	return cleaned
}

// companySizeBuckets map free-text hints to canonical size buckets.
var companySizeBuckets = []struct {
	bucket string
	hints  []string
}{
	{"1-10", []string{"1-10", "1-9", "startup"}},
	{"10-50", []string{"10-50", "11-50"}},
	{"50-100", []string{"50-100", "51-100"}},
	{"100-500", []string{"100-500", "101-500"}},
	{"500-1000", []string{"500-1000", "501-1000"}},
	{"1000+", []string{"1000+", "enterprise", "large"}},
}

// NormalizeCompanySize buckets free-text company sizes. The longest
// matching hint wins so "51-100" is never shadowed by its "1-10"
// substring. Unmatched non-empty input passes through unchanged; empty
// input becomes "unknown".
func NormalizeCompanySize(size string) string {
	if size == "" {
		return "unknown"
	}
	lower := strings.ToLower(size)
	bestHint, bestBucket := "", ""
	for _, b := range companySizeBuckets {
		for _, hint := range b.hints {
			if len(hint) > len(bestHint) && strings.Contains(lower, hint) {
				bestHint, bestBucket = hint, b.bucket
			}
		}
	}
	if bestBucket != "" {
		return bestBucket
	}
	return size
}

// StandardizeAddress collapses internal whitespace runs to single spaces
// and trims.
func StandardizeAddress(address string) string {
	if address == "" {
		return ""
	}
	return whitespaceRuns.ReplaceAllString(strings.TrimSpace(address), " ")
}

// ============================================================================
// Default validators
// ============================================================================

// ValidateEmail checks for a standard local@domain.tld shape.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidatePhone accepts empty values; otherwise the cleaned number must
// retain at least 7 digit or plus characters.
func ValidatePhone(phone string) bool {
	if phone == "" {
		return true
	}
	return len(nonPhoneChars.ReplaceAllString(phone, "")) >= 7
}

// ============================================================================
// Default business rules
// ============================================================================

func addContactName(rec Record) {
	first, _ := rec["firstName"].(string)
	last, _ := rec["lastName"].(string)
	if first != "" && last != "" {
		rec["contactName"] = first + " " + last
	}
}

func addTimestamp(rec Record) {
	rec["createdAt"] = nowFunc().UTC().Format(time.RFC3339)
}

func addMetadata(rec Record) {
	fields := make([]string, 0, len(rec))
	for key := range rec {
		fields = append(fields, key)
	}
	sort.Strings(fields)

	rec["metadata"] = map[string]any{
		"source":          "csv_upload",
		"processed_at":    rec["createdAt"],
		"original_fields": fields,
	}
}
