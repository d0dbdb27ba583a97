package filter

import "regexp"

// Detector flags values that should be redacted regardless of the
// parameter name they were bound to.
type Detector struct {
	Name  string
	Match func(v any) bool
}

// Detector names for the built-in PII-shaped string detectors.
const (
	DetectorEmail       = "email"
	DetectorAPIKey      = "api_key"
	DetectorBearerToken = "bearer_token"
	DetectorSSN         = "ssn"
	DetectorCreditCard  = "credit_card"
)

var (
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	apiKeyRe      = regexp.MustCompile(`(sk-[a-zA-Z0-9]+|api[-_]?key[-_:]\s*[a-zA-Z0-9]+)`)
	bearerTokenRe = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]+`)
	ssnRe         = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	creditCardRe  = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
)

// DefaultDetectors returns the built-in detectors. Each one inspects
// string values only; non-string arguments never match.
func DefaultDetectors() []Detector {
	return []Detector{
		stringDetector(DetectorEmail, emailRe),
		stringDetector(DetectorAPIKey, apiKeyRe),
		stringDetector(DetectorBearerToken, bearerTokenRe),
		stringDetector(DetectorSSN, ssnRe),
		stringDetector(DetectorCreditCard, creditCardRe),
	}
}

func stringDetector(name string, re *regexp.Regexp) Detector {
	return Detector{
		Name: name,
		Match: func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			return re.MatchString(s)
		},
	}
}
