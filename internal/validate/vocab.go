package validate

import "strings"

// Fixed option vocabularies. They are read-only after init and shared by all turns.
var (
	GenderOptions = []string{"Male", "Female", "Others"}

	RoleOptions = []string{
		"Entrepreneur",
		"Student",
		"Working Professional",
		"Freelancer/Consultant",
		"NGO/Social Worker",
		"Government Officer",
		"Other",
	}

	DomainOptions = []string{
		"Technology",
		"Healthcare",
		"Education",
		"Agriculture",
		"Finance & Banking",
		"Manufacturing",
		"Social Impact",
		"Government & Public Policy",
		"Media & Entertainment",
		"Retail & E-commerce",
		"Energy & Environment",
		"Other",
	}

	YatraImpactOptions = []string{
		"Started a new venture",
		"Expanded professional network",
		"Found a mentor",
		"Gained clarity on career path",
		"Joined social impact work",
		"Built confidence and leadership",
		"Discovered opportunities in small-town India",
	}

	CommunityAskOptions = []string{
		"Mentorship & Guidance",
		"Funding & Investment",
		"Networking Opportunities",
		"Technical Support",
		"Marketing & Sales Help",
		"Hiring & Talent",
		"Partnerships & Collaborations",
		"Market Access",
	}

	CommunityGiveOptions = []string{
		"Mentorship",
		"Investment & Funding",
		"Networking",
		"Technical Expertise",
		"Marketing Expertise",
		"Job Opportunities",
		"Partnerships",
		"Domain Knowledge",
	}
)

var genderAliases = map[string]string{
	"m": "Male", "male": "Male", "man": "Male", "boy": "Male",
	"f": "Female", "female": "Female", "woman": "Female", "girl": "Female",
	"o": "Others", "other": "Others", "others": "Others", "non-binary": "Others",
	"nonbinary": "Others", "prefer not to say": "Others",
}

var countryAliases = map[string]string{
	"india": "India", "bharat": "India", "in": "India", "ind": "India",
	"usa": "United States", "us": "United States", "america": "United States",
	"united states": "United States", "united states of america": "United States",
	"uk": "United Kingdom", "england": "United Kingdom", "united kingdom": "United Kingdom",
	"uae": "United Arab Emirates", "dubai": "United Arab Emirates",
}

var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true, "ya": true,
		"yea": true, "sure": true, "ok": true, "okay": true, "k": true, "haan": true,
		"han": true, "haa": true, "ha": true, "ji": true, "haan ji": true, "ji haan": true,
		"bilkul": true, "correct": true, "right": true, "of course": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true, "nahi": true, "nahin": true,
		"nai": true, "na": true, "not really": true, "never": true, "no thanks": true,
		"no thank you": true,
	}
)

// notNames are words that show up when members reply to the name question
// with something other than a name.
var notNames = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hii": true, "namaste": true,
	"yes": true, "no": true, "ok": true, "okay": true, "thanks": true,
	"test": true, "name": true, "my name": true, "skip": true,
}

// ParseYesNo maps a reply onto a boolean. The second result is false when the
// reply is neither a yes nor a no word.
func ParseYesNo(raw string) (bool, bool) {
	s := normalizeWord(raw)
	if yesWords[s] {
		return true, true
	}
	if noWords[s] {
		return false, true
	}
	return false, false
}

// IsYesNoWord reports whether the reply is an exact yes/no lexicon entry.
func IsYesNoWord(raw string) bool {
	_, ok := ParseYesNo(raw)
	return ok
}

func normalizeWord(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, ".!?,;: ")
	return strings.Join(strings.Fields(s), " ")
}
