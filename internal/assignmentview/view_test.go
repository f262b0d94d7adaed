package assignmentview

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

func date(month time.Month, day int) *civil.Date {
	d := civil.Date{Year: 2025, Month: month, Day: day}
	return &d
}

func hours(v float64) *float64 {
	return &v
}

func text(v string) *string {
	return &v
}

func ids(items []models.Assignment) []uint {
	out := make([]uint, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func sampleCollection() []models.Assignment {
	return []models.Assignment{
		{ID: 1, Title: "Essay draft", DueDate: nil, AssignmentType: models.AssignmentTypePaper},
		{ID: 2, Title: "problem set 3", Description: text("Chapter 4 exercises"), DueDate: date(time.March, 20), EstimatedHours: hours(4), AssignmentType: models.AssignmentTypeHomework},
		{ID: 3, Title: "Midterm", DueDate: date(time.March, 12), EstimatedHours: hours(10), AssignmentType: models.AssignmentTypeExam},
		{ID: 4, Title: "Reading response", DueDate: nil, AssignmentType: models.AssignmentTypeReading},
		{ID: 5, Title: "Lab 2", Description: text("Circuits"), DueDate: date(time.March, 15), AssignmentType: models.AssignmentTypeLab},
	}
}

func TestApplySortsUndatedLastAndStable(t *testing.T) {
	result := Apply(sampleCollection(), Query{SortBy: SortByDueDate})

	require.Equal(t, []uint{3, 5, 2, 1, 4}, ids(result.Items))
	require.Equal(t, EmptyReasonNone, result.EmptyReason)
	require.Equal(t, 5, result.Total)
}

func TestApplyDescendingKeepsUndatedLast(t *testing.T) {
	result := Apply(sampleCollection(), Query{SortBy: SortByDueDateDesc})

	require.Equal(t, []uint{2, 5, 3, 1, 4}, ids(result.Items))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	collection := sampleCollection()
	Apply(collection, Query{SortBy: SortByTitle})

	require.Equal(t, []uint{1, 2, 3, 4, 5}, ids(collection))
}

func TestSearchMatchesTitleOrDescription(t *testing.T) {
	collection := sampleCollection()

	byDescription := Apply(collection, Query{Search: "CHAPTER"})
	require.Equal(t, []uint{2}, ids(byDescription.Items))

	byTitle := Apply(collection, Query{Search: "essay"})
	require.Equal(t, []uint{1}, ids(byTitle.Items))

	none := Apply(collection, Query{Search: "quantum"})
	require.Empty(t, none.Items)
	require.Equal(t, EmptyReasonNoMatches, none.EmptyReason)
}

func TestTypeFilter(t *testing.T) {
	collection := sampleCollection()

	labs := Apply(collection, Query{Type: "lab"})
	require.Equal(t, []uint{5}, ids(labs.Items))

	all := Apply(collection, Query{Type: TypeAll})
	require.Len(t, all.Items, len(collection))

	combined := Apply(collection, Query{Search: "lab", Type: "exam"})
	require.Empty(t, combined.Items)
}

func TestFilterIsIdempotent(t *testing.T) {
	collection := sampleCollection()

	once := Filter(collection, "e", "homework")
	twice := Filter(once, "e", "homework")
	require.Equal(t, once, twice)
}

func TestSortByTitleIsLocaleAwareAndIdempotent(t *testing.T) {
	collection := []models.Assignment{
		{ID: 1, Title: "beta"},
		{ID: 2, Title: "Alpha"},
		{ID: 3, Title: "alpha"},
		{ID: 4, Title: "Gamma"},
	}

	first := Apply(collection, Query{SortBy: SortByTitle})
	require.Equal(t, []uint{3, 2, 1, 4}, ids(first.Items))

	second := Apply(first.Items, Query{SortBy: SortByTitle})
	require.Equal(t, ids(first.Items), ids(second.Items))
}

func TestSortByHoursTreatsMissingAsZero(t *testing.T) {
	collection := []models.Assignment{
		{ID: 1, Title: "a", EstimatedHours: nil},
		{ID: 2, Title: "b", EstimatedHours: hours(2)},
		{ID: 3, Title: "c", EstimatedHours: hours(0)},
		{ID: 4, Title: "d", EstimatedHours: hours(6.5)},
	}

	result := Apply(collection, Query{SortBy: SortByHours})
	require.Equal(t, []uint{4, 2, 1, 3}, ids(result.Items))
}

func TestEmptyCollection(t *testing.T) {
	result := Apply(nil, Query{Search: "anything"})

	require.Empty(t, result.Items)
	require.Equal(t, EmptyReasonNoAssignments, result.EmptyReason)
}

func TestParseSortKey(t *testing.T) {
	require.Equal(t, SortByTitle, ParseSortKey(" Title "))
	require.Equal(t, SortByHours, ParseSortKey("hours"))
	require.Equal(t, SortByDueDateDesc, ParseSortKey("-due_date"))
	require.Equal(t, SortByDueDate, ParseSortKey(""))
	require.Equal(t, SortByDueDate, ParseSortKey("bogus"))
}
