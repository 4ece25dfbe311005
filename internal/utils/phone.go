package utils

import (
	"regexp"
	"strings"
)

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

func IsValidPhone(phone string) bool {
	cleaned := regexp.MustCompile(`[^\d+]`).ReplaceAllString(phone, "")
	return phoneRegex.MatchString(cleaned)
}

// NormalizePhone reduces a phone number to E.164 form. Emergency contact
// numbers are stored normalized so SMS and voice dialing never disagree.
// Ten-digit national numbers get the default country code.
func NormalizePhone(phone string) string {
	normalized := regexp.MustCompile(`[^\d+]`).ReplaceAllString(phone, "")

	if !strings.HasPrefix(normalized, "+") {
		if len(normalized) == 10 {
			normalized = DefaultCountryCode + normalized
		} else {
			normalized = "+" + normalized
		}
	}

	return normalized
}

func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}

	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
