package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxCardErrorLength caps the stored length of a per-card error description.
const MaxCardErrorLength = 200

var (
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonPhonePattern   = regexp.MustCompile(`[^\d+]`)
	digitsPattern     = regexp.MustCompile(`[^\d]`)
	cjkGapPattern     = regexp.MustCompile(`(\p{Han})\s+(\p{Han})`)
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// taiwanCityPrefixes maps shorthand city names to their full administrative names.
var taiwanCityPrefixes = map[string]string{
	"台北": "台北市",
	"新北": "新北市",
	"桃園": "桃園市",
	"台中": "台中市",
	"台南": "台南市",
	"高雄": "高雄市",
}

// BusinessCard is a single extracted card. One uploaded image may yield
// zero or many cards.
type BusinessCard struct {
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Title      string `json:"title,omitempty"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
	Website    string `json:"website,omitempty"`
	Fax        string `json:"fax,omitempty"`
	LineID     string `json:"lineId,omitempty"`

	ConfidenceScore float64   `json:"confidenceScore"`
	QualityScore    float64   `json:"qualityScore"`
	ExtractedAt     time.Time `json:"extractedAt"`

	ImageURL string `json:"imageUrl,omitempty"`

	// UserID is the messaging-platform user the card was extracted for.
	UserID string `json:"userId"`

	// Processed reports whether the card was persisted to the card store.
	Processed bool `json:"processed"`
}

func (c *BusinessCard) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 1 {
		return fmt.Errorf("%w: confidence score %v out of [0,1]", ErrValidation, c.ConfidenceScore)
	}
	if c.QualityScore < 0 || c.QualityScore > 1 {
		return fmt.Errorf("%w: quality score %v out of [0,1]", ErrValidation, c.QualityScore)
	}
	return nil
}

// Normalize cleans extracted fields in place: phone numbers to E.164-ish
// international format, invalid emails dropped, CJK names de-spaced, and
// shorthand Taiwanese city prefixes expanded.
func (c *BusinessCard) Normalize() {
	c.Name = CleanName(c.Name)
	c.Phone = NormalizePhone(c.Phone)
	c.Mobile = NormalizePhone(c.Mobile)
	c.Fax = NormalizePhone(c.Fax)
	if c.Email != "" && !emailPattern.MatchString(c.Email) {
		c.Email = ""
	}
	c.Address = NormalizeAddress(c.Address)
}

// NormalizePhone converts a raw phone string into international format,
// defaulting to the Taiwan country code for local numbers. It returns ""
// when the input has no plausible number in it.
func NormalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	cleaned := nonPhonePattern.ReplaceAllString(raw, "")
	if cleaned == "" {
		return ""
	}

	digits := digitsPattern.ReplaceAllString(cleaned, "")
	if len(digits) < 8 || len(digits) > 15 {
		return ""
	}

	switch {
	case strings.HasPrefix(cleaned, "+"):
		return cleaned
	case strings.HasPrefix(cleaned, "886"):
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "09") && len(digits) == 10:
		// Taiwanese mobile.
		return "+886" + cleaned[1:]
	case len(cleaned) >= 2 && cleaned[0] == '0' && cleaned[1] >= '2' && cleaned[1] <= '8' && len(digits) >= 9 && len(digits) <= 10:
		// Taiwanese landline.
		return "+886" + cleaned[1:]
	}

	return cleaned
}

// CleanName trims and collapses whitespace. Spaces between CJK characters
// are removed entirely; single spaces in latin names are kept.
func CleanName(name string) string {
	if name == "" {
		return ""
	}
	name = strings.TrimSpace(name)
	for {
		cleaned := cjkGapPattern.ReplaceAllString(name, "$1$2")
		if cleaned == name {
			break
		}
		name = cleaned
	}
	return multiSpacePattern.ReplaceAllString(name, " ")
}

// NormalizeAddress expands shorthand Taiwanese city prefixes, e.g.
// "台北" -> "台北市".
func NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	for short, full := range taiwanCityPrefixes {
		if strings.HasPrefix(address, short) && !strings.HasPrefix(address, full) {
			return full + strings.TrimPrefix(address, short)
		}
	}
	return address
}
