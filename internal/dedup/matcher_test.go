package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

func newEvent(name, description, address string) *model.Event {
	e := &model.Event{
		Name:        name,
		Description: description,
		FullText:    description,
		StartDate:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:      model.SourceImageUpload,
	}
	if address != "" {
		e.Address = &address
		e.OriginalLocation = &address
	}
	return e
}

func TestIsDuplicate(t *testing.T) {
	m := NewMatcher(DefaultNameThreshold, DefaultDescriptionThreshold)

	cases := []struct {
		name string
		a, b *model.Event
		want bool
	}{
		{"identical", newEvent("Open Studios", "Artists open their doors.", "Armory"), newEvent("Open Studios", "Artists open their doors.", "Armory"), true},
		{"dropped letter", newEvent("Somerville City Council", "Regular meeting of the council.", "City Hall"), newEvent("Somerville City Councl", "Regular meeting of the council.", "City Hall"), true},
		{"series", newEvent("Community Workshop A", "Discussion on topic A.", "Community Center"), newEvent("Community Workshop B", "Discussion on topic B.", "Community Center"), false},
		{"levels", newEvent("Salsa Level 1", "Learn the basics.", "Dance Studio"), newEvent("Salsa Level 2", "Intermediate moves.", "Dance Studio"), false},
		{"committees", newEvent("School Committee Meeting", "Weekly meeting.", "City Hall"), newEvent("Finance Committee Meeting", "Weekly meeting.", "City Hall"), false},
		{"age groups", newEvent("Youth Soccer (U8)", "Saturday game.", "Trum Field"), newEvent("Youth Soccer (U10)", "Saturday game.", "Trum Field"), false},
		{"festival acts", newEvent("Porchfest: Band A", "Live music.", "123 Summer St"), newEvent("Porchfest: Band B", "Live music.", "123 Summer St"), false},
		{"languages", newEvent("Storytime (English)", "Read aloud.", "Library"), newEvent("Storytime (Spanish)", "Read aloud.", "Library"), false},
		{"opponents", newEvent("Somerville vs Medford", "Varsity Game", "Dilboy Stadium"), newEvent("Somerville vs Everett", "Varsity Game", "Dilboy Stadium"), false},
		{"wards", newEvent("Ward 1 Meeting", "Community update", "Zoom"), newEvent("Ward 2 Meeting", "Community update", "Zoom"), false},
		{"same title different topic", newEvent("Weekly Meeting", "Discussing zoning laws for the new park.", "City Hall"), newEvent("Weekly Meeting", "Discussing school budget and teacher salaries.", "City Hall"), false},
		{"cut-off name", newEvent("Ward Meeting", "Community update.", "Library"), newEvent("Ward 2 Meeting", "Community update.", "Library"), false},
		{"prefix", newEvent("Somerville Art", "Local event.", "Armory"), newEvent("Somerville Art Class", "Local event.", "Armory"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.IsDuplicate(tc.a, tc.b))
		})
	}
}

func TestThresholdsAreConfigurable(t *testing.T) {
	a := newEvent("Community Workshop A", "Discussion.", "Hall")
	b := newEvent("Community Workshop B", "Discussion.", "Hall")

	assert.False(t, NewMatcher(0.985, 0.95).IsDuplicate(a, b))
	assert.True(t, NewMatcher(0.9, 0.95).IsDuplicate(a, b))
}

func TestSameSlot(t *testing.T) {
	a := newEvent("X", "", "City Hall")
	b := newEvent("X", "", "City Hall")
	assert.True(t, SameSlot(a, b))

	end := a.StartDate.Add(time.Hour)
	b.EndDate = &end
	assert.False(t, SameSlot(a, b), "end date present on one side only")

	a.EndDate = &end
	assert.True(t, SameSlot(a, b))

	other := "Library"
	b.Address = &other
	assert.False(t, SameSlot(a, b))

	c := newEvent("X", "", "")
	d := newEvent("X", "", "")
	assert.True(t, SameSlot(c, d), "both locations unknown")
}
