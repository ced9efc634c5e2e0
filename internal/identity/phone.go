package identity

import (
	"regexp"
	"strings"

	"github.com/contentory/ingest/internal/chatwoot"
)

var phoneInNameRe = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)

// ExtractPhoneNumber pulls the first phone-number-like identifier out of a
// webhook payload. Sources are probed most-reliable first; an empty return
// means the sender could not be tied to a number at all.
func ExtractPhoneNumber(p *chatwoot.WebhookPayload) string {
	if p == nil {
		return ""
	}
	if p.Sender != nil {
		if v := strings.TrimSpace(p.Sender.PhoneNumber); v != "" {
			return v
		}
	}
	if p.Conversation != nil && p.Conversation.ContactInbox != nil {
		if v := strings.TrimSpace(p.Conversation.ContactInbox.SourceID); v != "" {
			return v
		}
	}
	if p.Sender != nil {
		if v := attrPhone(p.Sender.AdditionalAttributes); v != "" {
			return v
		}
	}
	if p.Conversation != nil {
		if v := attrPhone(p.Conversation.AdditionalAttributes); v != "" {
			return v
		}
	}
	if p.Account != nil {
		if v := attrPhone(p.Account.AdditionalAttributes); v != "" {
			return v
		}
	}
	if p.Sender != nil {
		if m := phoneInNameRe.FindString(p.Sender.Name); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return strings.TrimSpace(p.SourceID)
}

func attrPhone(attrs map[string]any) string {
	if attrs == nil {
		return ""
	}
	if v, ok := attrs["phone_number"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Normalize converts a raw phone identifier to canonical form: a leading "+"
// followed by country code and national number. Bare national-length numbers
// are assumed to belong to the default country. The heuristic is deliberately
// region-biased, which is why the country code comes from configuration.
func Normalize(raw, countryCode string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "+" {
		return ""
	}

	if strings.HasPrefix(s, "+") {
		return s
	}
	if strings.HasPrefix(s, "00") {
		return "+" + s[2:]
	}
	// Trunk prefix: a single leading zero on an otherwise national number.
	if strings.HasPrefix(s, "0") {
		s = s[1:]
	}
	if len(s) == 10 || len(s) == 11 {
		return "+" + countryCode + s
	}
	return "+" + s
}

// GenerateVariations returns the canonical form plus the alternate
// representations historical data may use for the same number. The canonical
// form is always first and the list is deduplicated.
func GenerateVariations(canonical, countryCode string) []string {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" {
		return nil
	}
	digits := strings.TrimPrefix(canonical, "+")

	candidates := []string{canonical, digits}
	if countryCode != "" && strings.HasPrefix(digits, countryCode) {
		national := digits[len(countryCode):]
		if national != "" {
			candidates = append(candidates, national, "0"+national)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
