// Package session holds the caller's research profile and renders it into the
// system instruction shared by every model call.
package session

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Supported lists the languages answers can be requested in. The first entry
// is the default.
var Supported = []language.Tag{
	language.English,
	language.Indonesian,
	language.Spanish,
	language.BrazilianPortuguese,
	language.French,
	language.German,
	language.Japanese,
}

var matcher = language.NewMatcher(Supported)

// Session is the profile a user sets once before running reports.
type Session struct {
	Niche        string `json:"niche"`
	Purpose      string `json:"purpose,omitempty"`
	Audience     string `json:"target_audience,omitempty"`
	BrandVoice   string `json:"brand_voice,omitempty"`
	CampaignGoal string `json:"campaign_goal,omitempty"`
	Language     string `json:"language,omitempty"`
	Country      string `json:"country,omitempty"`
}

// MatchLanguage maps a BCP 47 tag, an Accept-Language style list or an
// English language name ("Indonesian") to the closest supported tag.
func MatchLanguage(input string) language.Tag {
	input = strings.TrimSpace(input)
	if input == "" {
		return Supported[0]
	}
	if tags, _, err := language.ParseAcceptLanguage(input); err == nil && len(tags) > 0 {
		if _, idx, conf := matcher.Match(tags...); conf != language.No {
			return Supported[idx]
		}
	}
	names := display.English.Tags()
	for _, tag := range Supported {
		if strings.EqualFold(names.Name(tag), input) {
			return tag
		}
	}
	return Supported[0]
}

// LanguageName is the English display name of the session language.
func (s Session) LanguageName() string {
	return display.English.Tags().Name(MatchLanguage(s.Language))
}

// CountryName resolves ISO 3166 codes to a display name. Free text is
// returned unchanged and an empty country reads as "Global".
func (s Session) CountryName() string {
	c := strings.TrimSpace(s.Country)
	if c == "" {
		return "Global"
	}
	region, err := language.ParseRegion(c)
	if err != nil {
		return c
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return c
}

// NormalizeCountry returns the canonical ISO 3166 alpha-2 code for input, or
// "" when input is not a real country (groups like 419, private-use codes
// like XX, proxy markers like T1).
func NormalizeCountry(input string) string {
	region, err := language.ParseRegion(strings.TrimSpace(input))
	if err != nil || !region.IsCountry() || region.IsPrivateUse() {
		return ""
	}
	return region.String()
}

// SystemInstruction renders the persona, localization and formatting rules.
func (s Session) SystemInstruction() string {
	var b strings.Builder
	b.WriteString("You are the Market Oracle, a market intelligence analyst addressing the user as \"Seeker\".\n")
	b.WriteString("Be authoritative and precise. Ground every claim in the live data you are given; do not guess.\n\n")
	b.WriteString("Mandate: detect rising trends, forecast the next 7 days, reveal arbitrage gaps and propose business ideas.\n\n")
	fmt.Fprintf(&b, "Language: %s.\n", s.LanguageName())
	fmt.Fprintf(&b, "Region: %s.\n", s.CountryName())
	if n := strings.TrimSpace(s.Niche); n != "" {
		fmt.Fprintf(&b, "Niche: %s.\n", n)
	}
	if p := strings.TrimSpace(s.Purpose); p != "" {
		fmt.Fprintf(&b, "Purpose: %s.\n", p)
	}
	if g := strings.TrimSpace(s.CampaignGoal); g != "" {
		fmt.Fprintf(&b, "Campaign goal: %s.\n", g)
	}
	b.WriteString("\nFormatting: plain text only, no markdown bold.")
	if a := strings.TrimSpace(s.Audience); a != "" {
		fmt.Fprintf(&b, "\n\nTarget audience: %q.", a)
	}
	if v := strings.TrimSpace(s.BrandVoice); v != "" {
		fmt.Fprintf(&b, "\n\nBrand voice:\n\"\"\"%s\"\"\"", v)
	}
	return b.String()
}
