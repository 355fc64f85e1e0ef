package broadcast

import "fmt"

// Kind is the type of content being broadcast.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
	// KindForward re-sends any other message by forwarding it from the admin chat.
	KindForward Kind = "forward"
)

// Payload is the admin-authored message captured for fan-out.
type Payload struct {
	Kind    Kind
	Text    string
	Caption string
	FileID  string
	// SourceChat and SourceMessage locate the original for KindForward.
	SourceChat    int64
	SourceMessage int
}

// Validate checks that the payload carries what its kind needs.
func (p Payload) Validate() error {
	switch p.Kind {
	case KindText:
		if p.Text == "" {
			return fmt.Errorf("broadcast: empty text")
		}
	case KindPhoto, KindVideo, KindDocument, KindAudio:
		if p.FileID == "" {
			return fmt.Errorf("broadcast: %s without file id", p.Kind)
		}
	case KindForward:
		if p.SourceChat == 0 || p.SourceMessage == 0 {
			return fmt.Errorf("broadcast: forward without source message")
		}
	default:
		return fmt.Errorf("broadcast: unknown payload kind %q", p.Kind)
	}
	return nil
}
