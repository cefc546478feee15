package intent

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/memory"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

var (
	skipRegex = regexp.MustCompile(`^(?:please\s+)?(?:let'?s\s+|i\s+want\s+to\s+|i'?ll\s+do\s+it\s+|do\s+it\s+|can\s+i\s+)?` +
		`(skip|cancel|stop|quit|exit|later|pause|not now|maybe later|baad mein|baad me)` +
		`(?:\s+(?:it|this|that|for now|now|please|for later|the rest|profile))*$`)
	strongSkip = map[string]bool{"stop": true, "cancel": true, "quit": true, "exit": true}

	otpRegex         = regexp.MustCompile(`^\d{6}$`)
	numericListRegex = regexp.MustCompile(`^\d+(?:\s*[,\s]\s*\d+)*$`)

	updateVerbRegex  = regexp.MustCompile(`\b(?:update|edit|change|modify|complete|fix|correct|add)\b`)
	profileNounRegex = regexp.MustCompile(`\b(?:profile|details|detail|info|information)\b`)
	profileWordRegex = regexp.MustCompile(`\bprofile\b`)

	profileURLRegex = regexp.MustCompile(`(?i)(?:linkedin\.com/|instagram\.com/)`)

	searchPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:looking|searching|search)\s+for\b`),
		regexp.MustCompile(`\bfind\s+(?:me\s+)?(?:a|an|some|someone|people|members?)?\b`),
		regexp.MustCompile(`\b(?:anyone|someone|somebody|people|members?)\s+(?:from|in|who|with|working|doing|into|based)\b`),
		regexp.MustCompile(`\bneed\s+(?:a|an|some|help|someone|guidance|advice|support)\b`),
		regexp.MustCompile(`\bhelp\s+(?:me\s+)?(?:with|in|on)\b`),
		regexp.MustCompile(`\b(?:connect|introduce)\s+me\b`),
		regexp.MustCompile(`\bwant\s+to\s+(?:meet|connect|talk|speak)\b`),
		regexp.MustCompile(`\b(?:who\s+(?:is|are|knows|works|can))\b`),
		regexp.MustCompile(`\b(?:recommend|suggest)\b`),
		regexp.MustCompile(`\bshow\s+me\b`),
	}

	queryPrefixRegex = regexp.MustCompile(`^(?:(?:hi|hello|hey)[\s,!]+)?(?:please\s+)?(?:i\s+am\s+|i'm\s+|im\s+|we\s+are\s+)?` +
		`(?:looking\s+for|searching\s+for|search\s+for|find\s+me|find|need|want|show\s+me|connect\s+me\s+with|connect\s+me\s+to|introduce\s+me\s+to)\s+`)
)

// fieldMentions maps words that name a profile field in an update request.
var fieldMentions = []struct {
	term  string
	field models.FieldName
}{
	{"linkedin", models.FieldLinkedIn},
	{"instagram", models.FieldInstagram},
	{"phone", models.FieldPhoneNumber},
	{"mobile", models.FieldPhoneNumber},
	{"number", models.FieldPhoneNumber},
	{"address", models.FieldAddress},
	{"city", models.FieldAddress},
	{"location", models.FieldAddress},
	{"email", models.FieldAdditionalEmail},
	{"name", models.FieldFullName},
	{"gender", models.FieldGender},
	{"role", models.FieldProfessionalRole},
	{"profession", models.FieldProfessionalRole},
	{"birthday", models.FieldDateOfBirth},
	{"birth", models.FieldDateOfBirth},
	{"dob", models.FieldDateOfBirth},
	{"country", models.FieldCountry},
	{"domain", models.FieldDomain},
	{"industry", models.FieldDomain},
	{"impact", models.FieldYatraImpact},
	{"asks", models.FieldCommunityAsks},
	{"gives", models.FieldCommunityGives},
}

var casualPhrases = map[models.CasualSubtype][]string{
	models.CasualGreeting: {
		"hi", "hii", "hiii", "hello", "helo", "hey", "heya", "hola", "yo", "namaste", "namaskar",
		"good morning", "good afternoon", "good evening", "hi there", "hello there", "jai hind",
		"ram ram", "sat sri akal", "salaam", "greetings",
	},
	models.CasualGratitude: {
		"thanks", "thank you", "thank u", "thx", "ty", "thanks a lot", "thank you so much",
		"thanks so much", "many thanks", "dhanyavad", "dhanyawad", "shukriya", "appreciate it",
		"much appreciated", "great thanks", "ok thanks", "okay thanks",
	},
	models.CasualFarewell: {
		"bye", "goodbye", "good bye", "see you", "see ya", "cya", "good night", "take care",
		"tata", "talk later", "catch you later", "bye bye",
	},
	models.CasualAcknowledgment: {
		"got it", "noted", "cool", "great", "nice", "fine", "alright", "all right", "hmm",
		"hmmm", "awesome", "perfect", "understood", "sounds good", "wow", "oh", "ohk", "acha",
		"accha", "theek hai", "thik hai",
	},
}

var greetingWords = map[string]bool{
	"hi": true, "hii": true, "hiii": true, "hello": true, "hey": true, "namaste": true, "namaskar": true,
}

// searchVocabulary is the open keyword vocabulary for search scoring.
var searchVocabulary = func() []string {
	base := []string{
		// technical
		"developer", "developers", "engineer", "engineers", "software", "react", "python", "java",
		"golang", "javascript", "node", "frontend", "backend", "fullstack", "app", "web", "mobile",
		"android", "ios", "data", "ai", "ml", "cloud", "devops", "cybersecurity", "blockchain",
		"designer", "designers", "design", "ui", "ux", "product", "tech",
		// business
		"founder", "founders", "cofounder", "co-founder", "entrepreneur", "entrepreneurs", "startup",
		"startups", "business", "investor", "investors", "funding", "vc", "angel", "marketing",
		"sales", "finance", "accountant", "ca", "lawyer", "legal", "consultant", "hr", "hiring",
		"recruiter", "manager", "ceo", "cto",
		// industry
		"healthcare", "doctor", "doctors", "education", "teacher", "agriculture", "farming",
		"fintech", "edtech", "agritech", "ngo", "social", "manufacturing", "retail", "ecommerce",
		"media", "film", "energy", "solar", "climate", "government", "policy",
		// support
		"mentor", "mentors", "mentorship", "guidance", "advice", "expert", "experts",
		"collaboration", "partner", "partners", "professional", "professionals", "alumni", "yatri",
		"yatris",
	}
	return append(base, memory.LocationKeywords...)
}()

// normalizeText lowercases, trims and collapses whitespace.
func normalizeText(msg string) string {
	return strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}

// stripPunct replaces punctuation with spaces, keeping letters, digits, apostrophes and hyphens.
func stripPunct(s string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(out), " ")
}

func matchSkip(text string) (models.Confidence, bool) {
	m := skipRegex.FindStringSubmatch(stripPunct(text))
	if m == nil {
		return "", false
	}
	if strongSkip[m[1]] {
		return models.ConfidenceHigh, true
	}
	return models.ConfidenceMedium, true
}

// casualSubtype returns the subtype when the whole message is casual chatter.
func casualSubtype(text string) (models.CasualSubtype, bool) {
	s := stripPunct(text)
	if s == "" {
		return "", false
	}
	for _, subtype := range []models.CasualSubtype{models.CasualGreeting, models.CasualGratitude, models.CasualFarewell, models.CasualAcknowledgment} {
		for _, phrase := range casualPhrases[subtype] {
			if s == phrase {
				return subtype, true
			}
		}
	}
	words := strings.Fields(s)
	if greetingWords[words[0]] && len(words) <= 3 {
		return models.CasualGreeting, true
	}
	if strings.HasPrefix(s, "thank") && len(words) <= 5 {
		return models.CasualGratitude, true
	}
	return "", false
}

func mentionedField(text string) (models.FieldName, bool) {
	padded := " " + stripPunct(text) + " "
	for _, fm := range fieldMentions {
		if strings.Contains(padded, " "+fm.term+" ") {
			return fm.field, true
		}
	}
	return "", false
}

func searchKeywords(text string) []string {
	padded := " " + stripPunct(text) + " "
	var hits []string
	seen := make(map[string]bool)
	for _, kw := range searchVocabulary {
		if !seen[kw] && strings.Contains(padded, " "+kw+" ") {
			seen[kw] = true
			hits = append(hits, kw)
		}
	}
	return hits
}

func matchesSearchPattern(text string) bool {
	for _, re := range searchPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func extractQuery(text string) string {
	q := queryPrefixRegex.ReplaceAllString(text, "")
	q = strings.Trim(q, " ?.!,")
	if q == "" {
		return strings.Trim(text, " ?.!,")
	}
	return q
}

func parseNumbers(text string) []int {
	var out []int
	n, in := 0, false
	for _, r := range text {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			in = true
			continue
		}
		if in {
			out = append(out, n)
			n, in = 0, false
		}
	}
	if in {
		out = append(out, n)
	}
	return out
}
