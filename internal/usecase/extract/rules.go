package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
	"github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

// The rule pass is a deterministic grammar over the lowercased query text.
// It is the floor the LLM pass can only improve on, and the full extractor
// when no classifier is configured.

var (
	minutesRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-?\s*min(?:ute)?s?\b`)
	hoursRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-?\s*h(?:ou)?rs?\b`)

	topNRe   = regexp.MustCompile(`\btop\s+(\d{1,3})\b`)
	countNRe = regexp.MustCompile(`\b(\d{1,3})\s+(?:results?|recommendations?|suggestions?|options?|assessments?|tests?)\b`)
	bestNRe  = regexp.MustCompile(`\b(?:best|first)\s+(\d{1,3})\b`)
	wantNRe  = regexp.MustCompile(`\b(?:show|give|return|list)(?:\s+me)?\s+(\d{1,3})\b`)
)

// wordedDurations are scanned longest-first so "an hour and a half" is not
// consumed as a bare "an hour".
var wordedDurations = []struct {
	phrase  string
	minutes int
}{
	{"an hour and a half", 90},
	{"one and a half hours", 90},
	{"hour and a half", 90},
	{"three quarters of an hour", 45},
	{"half an hour", 30},
	{"half hour", 30},
	{"quarter of an hour", 15},
	{"an hour", 60},
	{"one hour", 60},
}

// floorMarkers mark a duration mention as a lower bound ("at least an hour").
// Lower bounds never become a ceiling.
var floorMarkers = []string{
	"at least",
	"more than",
	"minimum",
	"min.",
	"longer than",
	"over",
	"upwards of",
	"no less than",
	"not less than",
}

// categoryAliases maps query phrases to catalog category codes. A slice, not a
// map: scan order must be deterministic. Display names are included so
// "knowledge & skills tests" resolves without the LLM pass.
var categoryAliases = []struct {
	phrase string
	cat    assessment.Category
}{
	// A: Ability & Aptitude
	{"ability & aptitude", assessment.CategoryAbility},
	{"ability and aptitude", assessment.CategoryAbility},
	{"cognitive", assessment.CategoryAbility},
	{"aptitude", assessment.CategoryAbility},
	{"reasoning", assessment.CategoryAbility},
	{"numerical", assessment.CategoryAbility},
	{"verbal", assessment.CategoryAbility},
	{"logical", assessment.CategoryAbility},
	{"deductive", assessment.CategoryAbility},
	{"inductive", assessment.CategoryAbility},
	{"general ability", assessment.CategoryAbility},
	{"general intelligence", assessment.CategoryAbility},

	// B: Biodata & Situational Judgement
	{"situational judgement", assessment.CategoryBiodata},
	{"situational judgment", assessment.CategoryBiodata},
	{"biodata", assessment.CategoryBiodata},
	{"sjt", assessment.CategoryBiodata},

	// C: Competencies
	{"competency", assessment.CategoryCompetencies},
	{"competencies", assessment.CategoryCompetencies},
	{"leadership", assessment.CategoryCompetencies},
	{"universal competency", assessment.CategoryCompetencies},

	// D: Development & 360
	{"development & 360", assessment.CategoryDevelopment},
	{"360", assessment.CategoryDevelopment},
	{"360-degree", assessment.CategoryDevelopment},
	{"multi-rater", assessment.CategoryDevelopment},

	// E: Assessment Exercises
	{"assessment exercise", assessment.CategoryExercises},
	{"assessment exercises", assessment.CategoryExercises},
	{"case study", assessment.CategoryExercises},
	{"in-basket", assessment.CategoryExercises},
	{"in-tray", assessment.CategoryExercises},
	{"role play", assessment.CategoryExercises},
	{"group exercise", assessment.CategoryExercises},

	// K: Knowledge & Skills
	{"knowledge & skills", assessment.CategoryKnowledge},
	{"knowledge and skills", assessment.CategoryKnowledge},
	{"java", assessment.CategoryKnowledge},
	{"javascript", assessment.CategoryKnowledge},
	{"typescript", assessment.CategoryKnowledge},
	{"python", assessment.CategoryKnowledge},
	{"sql", assessment.CategoryKnowledge},
	{"c++", assessment.CategoryKnowledge},
	{"c#", assessment.CategoryKnowledge},
	{".net", assessment.CategoryKnowledge},
	{"html", assessment.CategoryKnowledge},
	{"css", assessment.CategoryKnowledge},
	{"programming", assessment.CategoryKnowledge},
	{"coding", assessment.CategoryKnowledge},
	{"developer", assessment.CategoryKnowledge},
	{"software engineer", assessment.CategoryKnowledge},
	{"technical skills", assessment.CategoryKnowledge},
	{"computer literacy", assessment.CategoryKnowledge},
	{"typing", assessment.CategoryKnowledge},
	{"data entry", assessment.CategoryKnowledge},
	{"excel", assessment.CategoryKnowledge},
	{"accounting", assessment.CategoryKnowledge},
	{"bookkeeping", assessment.CategoryKnowledge},

	// P: Personality & Behavior
	{"personality & behavior", assessment.CategoryPersonality},
	{"personality", assessment.CategoryPersonality},
	{"behavioral", assessment.CategoryPersonality},
	{"behavioural", assessment.CategoryPersonality},
	{"opq", assessment.CategoryPersonality},
	{"motivation", assessment.CategoryPersonality},
	{"temperament", assessment.CategoryPersonality},

	// S: Simulations
	{"simulation", assessment.CategorySimulations},
	{"simulations", assessment.CategorySimulations},
	{"contact center", assessment.CategorySimulations},
	{"call center", assessment.CategorySimulations},
	{"call centre", assessment.CategorySimulations},
}

// rulesPass runs the full deterministic grammar over the query.
func rulesPass(query string) recommend.Constraints {
	text := strings.ToLower(query)

	cons := recommend.Constraints{}
	if minutes, ok := parseDuration(text); ok {
		cons = cons.WithMaxDuration(minutes)
	}
	cons = cons.WithCategories(parseCategories(text))
	if n, ok := parseMaxResults(text); ok {
		cons = cons.WithMaxResults(n)
	}
	return cons
}

// parseDuration finds explicit duration mentions and returns the most
// restrictive ceiling. Mentions behind a floor marker ("at least X") are
// skipped. No mention means no bound: absence is never defaulted.
func parseDuration(text string) (int, bool) {
	type match struct {
		minutes int
		pos     int
	}
	var matches []match

	masked := text
	for _, wd := range wordedDurations {
		for {
			idx := strings.Index(masked, wd.phrase)
			if idx < 0 {
				break
			}
			matches = append(matches, match{minutes: wd.minutes, pos: idx})
			masked = masked[:idx] + strings.Repeat(" ", len(wd.phrase)) + masked[idx+len(wd.phrase):]
		}
	}

	for _, m := range minutesRe.FindAllStringSubmatchIndex(masked, -1) {
		val, err := strconv.ParseFloat(masked[m[2]:m[3]], 64)
		if err != nil {
			continue
		}
		matches = append(matches, match{minutes: int(val), pos: m[0]})
	}
	for _, m := range hoursRe.FindAllStringSubmatchIndex(masked, -1) {
		val, err := strconv.ParseFloat(masked[m[2]:m[3]], 64)
		if err != nil {
			continue
		}
		matches = append(matches, match{minutes: int(val * 60), pos: m[0]})
	}

	best := 0
	for _, m := range matches {
		if m.minutes <= 0 || hasFloorMarker(text, m.pos) {
			continue
		}
		if best == 0 || m.minutes < best {
			best = m.minutes
		}
	}
	return best, best > 0
}

// hasFloorMarker reports whether a floor phrase immediately precedes pos.
func hasFloorMarker(text string, pos int) bool {
	start := pos - 24
	if start < 0 {
		start = 0
	}
	window := text[start:pos]
	for _, marker := range floorMarkers {
		if containsPhrase(window, marker) {
			return true
		}
	}
	return false
}

// parseCategories scans the alias table with word-boundary matching so
// "java" does not fire inside "javanese" (and "javascript" has its own alias).
func parseCategories(text string) []assessment.Category {
	var cats []assessment.Category
	for _, alias := range categoryAliases {
		if containsPhrase(text, alias.phrase) {
			cats = append(cats, alias.cat)
		}
	}
	return cats
}

func containsPhrase(text, phrase string) bool {
	for idx := 0; ; {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		startOK := start == 0 || !isWordChar(text[start-1])
		endOK := end == len(text) || !isWordChar(text[end])
		if startOK && endOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// parseMaxResults finds an explicit requested result count ("top 5",
// "5 recommendations"). Bare numbers with a time unit never match here.
func parseMaxResults(text string) (int, bool) {
	for _, re := range []*regexp.Regexp{topNRe, countNRe, bestNRe, wantNRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		return n, true
	}
	return 0, false
}
