package instrumentation

import "strings"

// Cardinality management helpers for metrics and audit logging.
// High-cardinality label values (raw emails, client addresses) must never
// reach metric labels; these helpers reduce them to bounded sets.

// ExtractUserDomain extracts the domain part from an email address.
// This reduces cardinality by using the domain instead of the full email.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// AttendeeDomains reduces a list of attendee emails to their unique domains,
// preserving first-seen order.
func AttendeeDomains(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	domains := make([]string, 0, len(emails))
	for _, email := range emails {
		domain := ExtractUserDomain(email)
		if seen[domain] {
			continue
		}
		seen[domain] = true
		domains = append(domains, domain)
	}
	return domains
}

// Common operation types for calendar API metrics.
// Status constants are defined in config.go.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationVerify = "verify"
)
