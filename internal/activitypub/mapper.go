package activitypub

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

// Mapper converts stored events into federation objects and back-links
// remote references to local event ids.
type Mapper struct {
	urls URLs
}

func NewMapper(urls URLs) *Mapper {
	return &Mapper{urls: urls}
}

func (m *Mapper) EventObject(e *model.Event) *EventObject {
	summary := e.Description
	if summary == "" {
		summary = e.Name
	}
	content := e.FullText
	if content == "" {
		content = summary
	}

	obj := &EventObject{
		ID:           m.urls.EventObject(e.ID),
		Type:         "Event",
		Name:         e.Name,
		Summary:      summary,
		Content:      content,
		MediaType:    "text/plain",
		StartTime:    formatTime(e.StartDate),
		Location:     place(e),
		URL:          m.urls.EventPage(e.ID),
		Published:    formatTime(e.CreatedAt),
		Updated:      formatTime(e.UpdatedAt),
		AttributedTo: m.urls.Actor(),
		To:           []string{PublicCollection},
	}
	if e.EndDate != nil {
		obj.EndTime = formatTime(*e.EndDate)
	}
	for _, c := range e.Categories {
		obj.Tag = append(obj.Tag, Tag{Type: "Hashtag", Name: "#" + string(c)})
	}
	return obj
}

// CreateActivity wraps the event in the Create activity published in the
// outbox and pushed to followers.
func (m *Mapper) CreateActivity(e *model.Event) *Activity {
	return &Activity{
		ID:        m.urls.Activity(e.ID),
		Type:      "Create",
		Actor:     m.urls.Actor(),
		Published: formatTime(e.CreatedAt),
		To:        []string{PublicCollection},
		Object:    m.EventObject(e),
	}
}

func place(e *model.Event) *Place {
	if e.LocationName != nil && e.Address != nil && *e.LocationName != "" {
		return &Place{Type: "Place", Name: *e.LocationName, Address: *e.Address}
	}
	var name string
	switch {
	case e.Address != nil && *e.Address != "":
		name = *e.Address
	case e.OriginalLocation != nil:
		name = *e.OriginalLocation
	}
	if strings.TrimSpace(name) == "" {
		return nil
	}
	return &Place{Type: "Place", Name: name}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// path of an event object or event page, relative to the instance base
var eventRefPattern = regexp.MustCompile(`^(?:/activitypub)?/event/(\d+)/?(?:[?#].*)?$`)

// ResolveEventID returns the local event id referenced by the first
// candidate that is an event object or event page URL on this instance.
// References to other hosts never resolve.
func (u URLs) ResolveEventID(candidates ...string) (int64, bool) {
	for _, c := range candidates {
		rest, ok := strings.CutPrefix(c, u.base)
		if !ok || rest == "" {
			continue
		}
		m := eventRefPattern.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		return id, true
	}
	return 0, false
}
