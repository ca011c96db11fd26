package activitypub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

func ptr(s string) *string { return &s }

func TestEventObject(t *testing.T) {
	m := NewMapper(NewURLs(testBase + "/"))
	start := time.Date(2025, 6, 23, 18, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	end := start.Add(2 * time.Hour)
	e := &model.Event{
		ID:           7,
		Name:         "Porchfest",
		FullText:     "Bands on porches all afternoon.",
		StartDate:    start,
		EndDate:      &end,
		Address:      ptr("Highland Ave, Somerville, MA"),
		LocationName: ptr("Somerville High"),
		Categories:   []model.Category{model.CategoryMusic, model.CategoryPerformance},
	}

	obj := m.EventObject(e)
	assert.Equal(t, "http://localhost/activitypub/event/7", obj.ID)
	assert.Equal(t, "Event", obj.Type)
	assert.Equal(t, "Porchfest", obj.Summary, "summary falls back to name")
	assert.Equal(t, "Bands on porches all afternoon.", obj.Content)
	assert.Equal(t, "text/plain", obj.MediaType)
	assert.Equal(t, "2025-06-23T22:00:00Z", obj.StartTime)
	assert.Equal(t, "2025-06-24T00:00:00Z", obj.EndTime)
	assert.Equal(t, "http://localhost/event/7", obj.URL)
	assert.Equal(t, "http://localhost/activitypub/actor", obj.AttributedTo)
	require.NotNil(t, obj.Location)
	assert.Equal(t, Place{Type: "Place", Name: "Somerville High", Address: "Highland Ave, Somerville, MA"}, *obj.Location)
	assert.Equal(t, []Tag{{"Hashtag", "#Music"}, {"Hashtag", "#Performance"}}, obj.Tag)

	act := m.CreateActivity(e)
	assert.Equal(t, "http://localhost/activitypub/activity/7", act.ID)
	assert.Equal(t, "Create", act.Type)
	assert.Equal(t, []string{PublicCollection}, act.To)
}

func TestEventObjectLocationFallback(t *testing.T) {
	m := NewMapper(NewURLs(testBase))
	cases := []struct {
		name  string
		event model.Event
		want  *Place
	}{
		{"address only", model.Event{Address: ptr("1 Main St")}, &Place{Type: "Place", Name: "1 Main St"}},
		{"raw text", model.Event{OriginalLocation: ptr("the big tent")}, &Place{Type: "Place", Name: "the big tent"}},
		{"unknown", model.Event{}, nil},
		{"blank", model.Event{OriginalLocation: ptr("  ")}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.event.Description = "x"
			obj := m.EventObject(&tc.event)
			assert.Equal(t, tc.want, obj.Location)
			assert.Equal(t, "x", obj.Content)
		})
	}
}

func TestResolveEventID(t *testing.T) {
	urls := NewURLs(testBase)
	cases := []struct {
		in   []string
		id   int64
		want bool
	}{
		{[]string{"http://localhost/event/42"}, 42, true},
		{[]string{"http://localhost/activitypub/event/9"}, 9, true},
		{[]string{"http://localhost/event/9/"}, 9, true},
		{[]string{"http://localhost/event/9?ref=feed"}, 9, true},
		{[]string{"", "https://remote.example/notes/1", "http://localhost/event/3"}, 3, true},
		{[]string{"https://mobilizon.other.example/event/7"}, 0, false},
		{[]string{"https://remote.example/activitypub/event/7"}, 0, false},
		{[]string{"http://localhost.evil.example/event/7"}, 0, false},
		{[]string{"http://localhost/users/x/event/7"}, 0, false},
		{[]string{"http://localhost/event/abc"}, 0, false},
		{[]string{"http://localhost/event/0"}, 0, false},
		{[]string{"http://localhost/events/12/photos"}, 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		id, ok := urls.ResolveEventID(tc.in...)
		assert.Equal(t, tc.want, ok, "%v", tc.in)
		assert.Equal(t, tc.id, id, "%v", tc.in)
	}
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindFollow, ParseKind("Follow"))
	assert.Equal(t, KindTentativeAccept, ParseKind("TentativeAccept"))
	assert.Equal(t, KindOther, ParseKind("Flag"))
	assert.Equal(t, KindOther, ParseKind("follow"))
	assert.Equal(t, "Announce", KindAnnounce.String())
	assert.Equal(t, "Other", KindOther.String())

	rt, ok := KindReject.RSVP()
	assert.True(t, ok)
	assert.Equal(t, model.RSVPReject, rt)
	_, ok = KindLike.RSVP()
	assert.False(t, ok)
}
