package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-student-records/internal/models"
)

func roster() []models.Student {
	return []models.Student{
		{ID: "1", FirstName: "Ann", LastName: "Lee"},
		{ID: "2", FirstName: "Bob", LastName: "Hanna"},
		{ID: "3", FirstName: "Carl", LastName: "Jones"},
		{ID: "4", FirstName: "Joanne", LastName: "Smith"},
	}
}

func ids(records []models.Student) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterEmptyQueryReturnsAll(t *testing.T) {
	records := roster()
	assert.Equal(t, records, Filter(records, ""))
}

func TestFilterIsCaseInsensitive(t *testing.T) {
	records := roster()
	lower := Filter(records, "ann")
	upper := Filter(records, "ANN")
	assert.Equal(t, lower, upper)
	assert.Equal(t, []string{"1", "2", "4"}, ids(lower))
}

func TestFilterMatchesAcrossNameBoundary(t *testing.T) {
	assert.Equal(t, []string{"1"}, ids(Filter(roster(), "n l")))
	assert.Empty(t, Filter(roster(), "annlee"))
}

func TestFilterIsOrderedSubsequence(t *testing.T) {
	records := roster()
	for _, q := range []string{"a", "o", "e", "zz", "Jo", " "} {
		got := Filter(records, q)
		cursor := 0
		for _, r := range got {
			for cursor < len(records) && records[cursor].ID != r.ID {
				cursor++
			}
			if !assert.Less(t, cursor, len(records), "query %q produced element out of order", q) {
				break
			}
			cursor++
		}
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	records := roster()
	_ = Filter(records, "bob")
	assert.Equal(t, roster(), records)
}
