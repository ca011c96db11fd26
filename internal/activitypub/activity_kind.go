package activitypub

import "github.com/Somerville-Events/somerville.events-sub000/internal/model"

// Kind is the closed set of inbound activity types the inbox acts on.
// Everything else is KindOther and only audited.
type Kind int

const (
	KindOther Kind = iota
	KindFollow
	KindUndo
	KindAccept
	KindTentativeAccept
	KindReject
	KindLike
	KindAnnounce
	KindCreate
)

var kindNames = map[string]Kind{
	"Follow":          KindFollow,
	"Undo":            KindUndo,
	"Accept":          KindAccept,
	"TentativeAccept": KindTentativeAccept,
	"Reject":          KindReject,
	"Like":            KindLike,
	"Announce":        KindAnnounce,
	"Create":          KindCreate,
}

func ParseKind(s string) Kind {
	if k, ok := kindNames[s]; ok {
		return k
	}
	return KindOther
}

func (k Kind) String() string {
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return "Other"
}

// RSVP reports the response type for Accept-family activities.
func (k Kind) RSVP() (model.RSVPType, bool) {
	switch k {
	case KindAccept:
		return model.RSVPAccept, true
	case KindTentativeAccept:
		return model.RSVPTentativeAccept, true
	case KindReject:
		return model.RSVPReject, true
	default:
		return "", false
	}
}
