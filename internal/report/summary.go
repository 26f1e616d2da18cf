// Package report builds the Swedish clinical summary text for a V-QUEST
// submission and renders exported reports to HTML.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cll-genie-server/internal/domain"
)

// Default hypermutation cutoffs, in percent V-REGION identity.
const (
	DefaultUpperCutoff = 97.98
	DefaultLowerCutoff = 97.00
)

// Mutation status of a submission.
type Mutation int

const (
	Unmutated Mutation = iota + 1
	Mutated
	Borderline
	Inconclusive
)

func (m Mutation) String() string {
	switch m {
	case Unmutated:
		return "U-CLL"
	case Mutated:
		return "M-CLL"
	case Borderline:
		return "borderline"
	case Inconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

const preamble = "Analysen innefattar amplifiering och sekvensering av klonalt IGH-gen rearrangemang för identifiering av somatisk hypermutationsstatus dvs. muterad (M-CLL) eller icke muterad (U-CLL). Dessutom undersöks eventuell subsettillhörighet (subset #1, #2, #4 eller #8).\n\n"

const (
	noRearrangement  = "I aktuellt KLL prov kan ett funktionellt IGH-gen rearrangemang inte identifieras.\nDå vidare analys av somatisk hypermutationsstatus och subset-tillhörighet ej är utförbart hänvisas aktuellt provet för analys vid avd. för Molekylärpatologi, Uppsala Akademiska Sjukhus.\n\n"
	oneRearrangement = "I aktuellt KLL prov kan ett funktionellt IGH-gen rearrangemang identifieras.\n\n"
	rearrangements   = "I aktuellt KLL prov kan %s funktionella IGH-gen rearrangemang identifieras.\n\n"
)

const (
	unmutatedText    = "Analysen av den %s produktiva IGH-gensekvenserna i IMGT/V-QUEST påvisar ingen förekomst av somatisk hypermutation (U-CLL) i det aktuella provet (%s%% identitet mot IGHV-genen)."
	mutatedText      = "Analysen av den %s produktiva IGH-gensekvenserna i IMGT/V-QUEST påvisar förekomst av somatisk hypermutation (M-CLL) i det aktuella provet (%s%% identitet mot IGHV-genen)"
	borderlineText   = "Analysen av den %s produktiva IGH-gensekvenserna i IMGT/V-QUEST påvisar borderline-resultat i det aktuella provet (97-97.98%% identitet mot IGHV-genen). Det är således omöjligt att säkerställa mutationsstatus för aktuellt prov"
	inconclusiveText = "Analysen av de %s produktiva IGH-gensekvenserna i IMGT/V-QUEST påvisar motsägelsefulla resultat med avseende på förekomst av somatisk hypermutation (%s%% identitet mot IGHV-genen) i det aktuella provet. Det är således inte möjligt att säkerställa mutationsstatus för aktuellt prov."
)

const (
	oneSubsetText   = "Vidare påvisar subset-analysen att det aktuella provet tillhör subset %s"
	noSubsetText    = "Vidare påvisar subset-analysen ingen subsettillhörighet med avseende på subset #1 #2, #4 eller #8 i det aktuella provet"
	manySubsetsText = "Dessutom visar delmängdsanalysen motsägelsefullt delmängdsmedlemskap med avseende på delmängd #1 #2, #4 eller #8 i det aktuella urvalet. Någon avgörande delmängdstilldelning kan därför inte göras."
)

// swedishNumbers is indexed by count. The capital "Fem" is the wording
// used in signed-out reports.
var swedishNumbers = []string{"", "ett", "två", "tre", "fyra", "Fem", "sex", "sju", "åtta", "nio", "tio"}

func swedishNumber(n int) string {
	if n >= 0 && n < len(swedishNumbers) {
		return swedishNumbers[n]
	}
	return strconv.Itoa(n)
}

// Generator produces the report summary text of a submission.
type Generator struct {
	UpperCutoff float64
	LowerCutoff float64
}

// NewGenerator returns a generator using the configured cutoffs, falling
// back to the defaults for unset values.
func NewGenerator(cfg domain.AnalysisConfig) *Generator {
	g := &Generator{UpperCutoff: cfg.UpperCutoff, LowerCutoff: cfg.LowerCutoff}
	if g.UpperCutoff == 0 {
		g.UpperCutoff = DefaultUpperCutoff
	}
	if g.LowerCutoff == 0 {
		g.LowerCutoff = DefaultLowerCutoff
	}
	return g
}

// Summarize returns the summary text. ok is false when there are no
// results, the submitted sequence count is not a non-negative integer, or
// a sequence has no usable V-REGION identity.
func (g *Generator) Summarize(sequences map[string]*domain.SequenceResult, submittedCount string) (string, bool) {
	if sequences == nil {
		return "", false
	}
	count, err := strconv.Atoi(strings.TrimSpace(submittedCount))
	if err != nil || count < 0 {
		return "", false
	}
	identities, err := Identities(sequences)
	if err != nil {
		return "", false
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString(countClause(count))
	b.WriteString(g.hypermutationClause(identities))
	b.WriteString("\n\n")
	b.WriteString(subsetClause(sequences))
	b.WriteString("\n\n")
	return b.String(), true
}

// NegativeSummary is the text of a report for a sample in which no
// functional rearrangement was found.
func NegativeSummary() string {
	return preamble + noRearrangement
}

func countClause(count int) string {
	switch count {
	case 0:
		return noRearrangement
	case 1:
		return oneRearrangement
	default:
		return fmt.Sprintf(rearrangements, strings.ToLower(swedishNumber(count)))
	}
}

// Identities returns the rounded V-REGION identity of every sequence in
// sequence ID order.
func Identities(sequences map[string]*domain.SequenceResult) ([]float64, error) {
	ids := make([]string, 0, len(sequences))
	for id := range sequences {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	identities := make([]float64, 0, len(ids))
	for _, id := range ids {
		v, err := sequences[id].Identity()
		if err != nil {
			return nil, err
		}
		identities = append(identities, v)
	}
	return identities, nil
}

// Classify maps identity percentages to a mutation status. An empty list
// is inconclusive.
func (g *Generator) Classify(identities []float64) Mutation {
	if len(identities) == 0 {
		return Inconclusive
	}
	above, below, within := true, true, true
	for _, v := range identities {
		above = above && v > g.UpperCutoff
		below = below && v < g.LowerCutoff
		within = within && v >= g.LowerCutoff && v <= g.UpperCutoff
	}
	switch {
	case above:
		return Unmutated
	case below:
		return Mutated
	case within:
		return Borderline
	default:
		return Inconclusive
	}
}

func (g *Generator) hypermutationClause(identities []float64) string {
	n := swedishNumber(len(identities))
	list := formatIdentities(identities)
	switch g.Classify(identities) {
	case Unmutated:
		return fmt.Sprintf(unmutatedText, n, list)
	case Mutated:
		return fmt.Sprintf(mutatedText, n, list)
	case Borderline:
		return fmt.Sprintf(borderlineText, n)
	default:
		return fmt.Sprintf(inconclusiveText, n, list)
	}
}

// formatIdentities joins values as "99.5%, 97.0"; whole numbers keep one
// decimal.
func formatIdentities(identities []float64) string {
	parts := make([]string, len(identities))
	for i, v := range identities {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		parts[i] = s
	}
	return strings.Join(parts, "%, ")
}

// Subsets returns the distinct assigned subset labels in sorted order.
func Subsets(sequences map[string]*domain.SequenceResult) []string {
	seen := map[string]bool{}
	var labels []string
	for _, seq := range sequences {
		label, ok := seq.Subset().Value()
		if !ok || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func subsetClause(sequences map[string]*domain.SequenceResult) string {
	labels := Subsets(sequences)
	switch len(labels) {
	case 0:
		return noSubsetText
	case 1:
		return fmt.Sprintf(oneSubsetText, labels[0])
	default:
		return manySubsetsText
	}
}
