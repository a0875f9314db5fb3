// Package schema is the single field catalog of the hate-speech rubric.
// Every other component (prompt, normalizer, aggregator, scorer, summary)
// reads facet and target names from here.
package schema

// Version identifies the catalog revision. Bump it when a facet or target is
// added, removed or renamed.
const Version = "2024.1"

// Overall labels
const (
	LabelSupportive = "supportive"
	LabelNeutral    = "neutral"
	LabelHateful    = "hateful"
)

// Label thresholds on the continuous hate speech score.
const (
	HatefulAbove    = 0.5
	SupportiveBelow = -1.0
)

// Ordinal range of every facet.
const (
	FacetMin = 0
	FacetMax = 4
)

// Labels lists the overall labels from most supportive to most hateful.
var Labels = []string{LabelSupportive, LabelNeutral, LabelHateful}

// Facets lists the ordinal rubric dimensions in rubric order.
var Facets = []string{
	"sentiment",
	"respect",
	"insult",
	"humiliate",
	"status",
	"dehumanize",
	"violence",
	"genocide",
	"attack_defend",
	"hatespeech",
}

// Targets lists the demographic target flags in rubric order.
var Targets = []string{
	"target_race_asian",
	"target_race_black",
	"target_race_latinx",
	"target_race_middle_eastern",
	"target_race_native_american",
	"target_race_pacific_islander",
	"target_race_white",
	"target_race_other",
	"target_religion_atheist",
	"target_religion_buddhist",
	"target_religion_christian",
	"target_religion_hindu",
	"target_religion_jewish",
	"target_religion_mormon",
	"target_religion_muslim",
	"target_religion_other",
	"target_origin_immigrant",
	"target_origin_migrant_worker",
	"target_origin_specific_country",
	"target_origin_undocumented",
	"target_origin_other",
	"target_gender_men",
	"target_gender_non_binary",
	"target_gender_transgender_men",
	"target_gender_transgender_unspecified",
	"target_gender_transgender_women",
	"target_gender_women",
	"target_gender_other",
	"target_sexuality_bisexual",
	"target_sexuality_gay",
	"target_sexuality_lesbian",
	"target_sexuality_straight",
	"target_sexuality_other",
	"target_age_children",
	"target_age_teenagers",
	"target_age_young_adults",
	"target_age_middle_aged",
	"target_age_seniors",
	"target_age_other",
	"target_disability_physical",
	"target_disability_cognitive",
	"target_disability_neurological",
	"target_disability_visually_impaired",
	"target_disability_hearing_impaired",
	"target_disability_unspecific",
	"target_disability_other",
}

var (
	facetSet  = toSet(Facets)
	targetSet = toSet(Targets)
)

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// IsFacet reports whether name is a catalog facet.
func IsFacet(name string) bool {
	_, ok := facetSet[name]
	return ok
}

// IsTarget reports whether name is a catalog target.
func IsTarget(name string) bool {
	_, ok := targetSet[name]
	return ok
}

// LabelFromScore maps a continuous score to an overall label. Both
// boundaries are exclusive: 0.5 and -1.0 are neutral.
func LabelFromScore(score float64) string {
	switch {
	case score > HatefulAbove:
		return LabelHateful
	case score < SupportiveBelow:
		return LabelSupportive
	default:
		return LabelNeutral
	}
}

// ClampFacet limits v to [FacetMin, FacetMax].
func ClampFacet(v int) int {
	if v < FacetMin {
		return FacetMin
	}
	if v > FacetMax {
		return FacetMax
	}
	return v
}
