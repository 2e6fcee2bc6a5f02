// Package search narrows an in-memory student list for the records table.
package search

import (
	"strings"

	"github.com/noah-isme/sma-student-records/internal/models"
)

// Filter keeps the records whose display name contains query, ignoring case.
// An empty query returns records as given. The input slice is never modified.
func Filter(records []models.Student, query string) []models.Student {
	if query == "" {
		return records
	}
	needle := strings.ToLower(query)
	matched := make([]models.Student, 0, len(records))
	for _, record := range records {
		if strings.Contains(strings.ToLower(record.DisplayName()), needle) {
			matched = append(matched, record)
		}
	}
	return matched
}
