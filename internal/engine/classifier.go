package engine

import (
	"strings"

	"github.com/scrypster/recall/pkg/types"
)

// Classification is the attribute category a memory text maps to, plus the
// canonical value it asserts for that category. Two memories conflict when
// they share a category but assert different values.
type Classification struct {
	Category types.AttributeCategory
	Value    string
}

// vocabValue is one canonical value and the surface forms that select it.
type vocabValue struct {
	canonical string
	forms     []string
}

// categoryVocab maps each category to the canonical values the classifier
// recognizes, with the surface forms that select them. The table is closed
// and ordered on purpose: classification must be deterministic and total,
// and adding a category is an explicit code change, not a drift in string
// matching.
var categoryVocab = []struct {
	category types.AttributeCategory
	trigger  []string // any of these selects the category
	values   []vocabValue
}{
	{
		category: types.CategoryDeliveryDay,
		trigger:  []string{"deliver"},
		values: []vocabValue{
			{canonical: "monday", forms: []string{"monday"}},
			{canonical: "tuesday", forms: []string{"tuesday"}},
			{canonical: "wednesday", forms: []string{"wednesday"}},
			{canonical: "thursday", forms: []string{"thursday"}},
			{canonical: "friday", forms: []string{"friday"}},
			{canonical: "saturday", forms: []string{"saturday"}},
			{canonical: "sunday", forms: []string{"sunday"}},
		},
	},
	{
		category: types.CategoryContactChannel,
		trigger:  []string{"contact"},
		values: []vocabValue{
			{canonical: "email", forms: []string{"email", "e-mail"}},
			{canonical: "phone", forms: []string{"phone", "call"}},
			{canonical: "slack", forms: []string{"slack"}},
			{canonical: "sms", forms: []string{"sms", "text message"}},
		},
	},
	{
		category: types.CategoryPaymentTerms,
		trigger:  []string{"payment", "terms"},
		values: []vocabValue{
			{canonical: "net-15", forms: []string{"net-15", "net 15"}},
			{canonical: "net-30", forms: []string{"net-30", "net 30"}},
			{canonical: "net-60", forms: []string{"net-60", "net 60"}},
			{canonical: "prepaid", forms: []string{"prepaid", "payment upfront"}},
			{canonical: "on-receipt", forms: []string{"due on receipt"}},
		},
	},
	{
		category: types.CategoryMeetingCadence,
		trigger:  []string{"meeting"},
		values: []vocabValue{
			{canonical: "weekly", forms: []string{"weekly", "every week"}},
			{canonical: "biweekly", forms: []string{"biweekly", "every other week", "every two weeks"}},
			{canonical: "monthly", forms: []string{"monthly", "every month"}},
			{canonical: "quarterly", forms: []string{"quarterly", "every quarter"}},
		},
	},
	{
		category: types.CategoryInvoiceFormat,
		trigger:  []string{"invoice"},
		values: []vocabValue{
			{canonical: "pdf", forms: []string{"pdf"}},
			{canonical: "paper", forms: []string{"paper", "printed", "mail"}},
			{canonical: "portal", forms: []string{"portal", "upload"}},
			{canonical: "edi", forms: []string{"edi"}},
		},
	},
	{
		category: types.CategoryPricingTier,
		trigger:  []string{"pricing", "tier"},
		values: []vocabValue{
			{canonical: "standard", forms: []string{"standard"}},
			{canonical: "preferred", forms: []string{"preferred"}},
			{canonical: "enterprise", forms: []string{"enterprise"}},
			{canonical: "legacy", forms: []string{"legacy", "grandfathered"}},
		},
	},
}

// classify maps a memory text to exactly one attribute category and its
// asserted value. The function is pure and total: every text maps to one
// category or CategoryUncategorized, and uncategorized memories never
// conflict. Day-of-week preferences like "prefers Thursday" classify as
// delivery day even without the word "deliver" when "prefer" is present.
func classify(text string) Classification {
	lower := strings.ToLower(text)

	for _, entry := range categoryVocab {
		if !triggerMatches(lower, entry.trigger) {
			continue
		}
		if value := matchValue(lower, entry.values); value != "" {
			return Classification{Category: entry.category, Value: value}
		}
	}

	// Preference statements with a weekday are delivery-day assertions
	// even when phrased without "deliver" ("Kai Media prefers Thursday").
	if strings.Contains(lower, "prefer") {
		for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
			if strings.Contains(lower, day) {
				return Classification{Category: types.CategoryDeliveryDay, Value: day}
			}
		}
	}

	return Classification{Category: types.CategoryUncategorized}
}

// triggerMatches reports whether any trigger keyword appears in the text.
func triggerMatches(lower string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// matchValue returns the canonical value whose surface form occurs earliest
// in the text. Texts naming several values of one category ("moved from
// Thursday to Friday") therefore classify stably on the first-named value,
// with table order breaking exact ties.
func matchValue(lower string, values []vocabValue) string {
	best := ""
	bestPos := -1
	for _, v := range values {
		for _, form := range v.forms {
			pos := strings.Index(lower, form)
			if pos < 0 {
				continue
			}
			if bestPos < 0 || pos < bestPos {
				best, bestPos = v.canonical, pos
			}
		}
	}
	return best
}
