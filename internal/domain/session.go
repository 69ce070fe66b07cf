package domain

// SessionID names one logical session ("camera", "screen", ...).
// The zero value is the implicit session used when an envelope carries
// no id; it never equals Named(""), so an empty wire id stays distinct.
type SessionID struct {
	name  string
	named bool
}

var Implicit = SessionID{}

const (
	CameraSession = "camera"
	ScreenSession = "screen"
)

func Named(name string) SessionID { return SessionID{name: name, named: true} }

// SessionIDFrom maps an optional wire id onto a SessionID.
func SessionIDFrom(id *string) SessionID {
	if id == nil {
		return Implicit
	}
	return Named(*id)
}

func (s SessionID) IsImplicit() bool { return !s.named }

// Wire returns the id as it goes on the wire: nil for the implicit session.
func (s SessionID) Wire() *string {
	if s.IsImplicit() {
		return nil
	}
	name := s.name
	return &name
}

func (s SessionID) String() string {
	if !s.named {
		return "<implicit>"
	}
	return s.name
}

type Role string

const (
	RoleOfferer  Role = "offerer"
	RoleAnswerer Role = "answerer"
)

type SessionState string

const (
	StateIdle            SessionState = "idle"
	StateHaveLocalOffer  SessionState = "have-local-offer"
	StateHaveRemoteOffer SessionState = "have-remote-offer"
	StateHaveLocalAnswer SessionState = "have-local-answer"
	StateConnected       SessionState = "connected"
	StateClosed          SessionState = "closed"
)

type MediaKind string

const (
	MediaCamera MediaKind = "camera"
	MediaScreen MediaKind = "screen"
)
