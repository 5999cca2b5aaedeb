package logger

import "strings"

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// keep the TLD
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedPhone keeps the country prefix and the last two digits
// (e.g., "+55*********00").
func SanitizedPhone(phone string) string {
	if len(phone) < 6 {
		return "[invalid-phone]"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}

// SanitizedDocument keeps only the last two digits of a CPF/CNPJ.
func SanitizedDocument(document string) string {
	if len(document) < 3 {
		return "[invalid-document]"
	}
	return strings.Repeat("*", len(document)-2) + document[len(document)-2:]
}

var sensitiveParams = []string{
	"password", "token", "secret", "code", "email", "phone", "document", "auth",
}

// SanitizeQueryString reports whether rawQuery mentions a sensitive
// parameter and should be dropped from request logs.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
