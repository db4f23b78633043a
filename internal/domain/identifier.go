// Package domain defines the submission identifier and the persisted record
// that tracks a submission's print history.
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Separator joins the identifier segments in callback payloads and file ids.
	Separator = "-"

	// NegativeMarker replaces the sign of negative chat ids (groups and
	// channels) so the identifier can be split on Separator. Chat ids are
	// decimal integers, so the marker never appears in the encoded digits and
	// the substitution is bijective. Channel keys built from anything other
	// than an integer chat id must not contain the marker.
	NegativeMarker = "G"

	identifierSegments = 5
)

// Callback action tags.
const (
	ActionPrint  = "print"
	ActionCancel = "cancel"
	ActionInfo   = "info"
)

// ErrInvalidIdentifier is returned when a serialized identifier or callback
// payload cannot be decoded.
var ErrInvalidIdentifier = errors.New("invalid submission identifier")

// Identifier is the composite key naming a submission's storage location.
type Identifier struct {
	Year      int
	Month     int
	Day       int
	Channel   string
	MessageID int
}

// ChannelKey encodes a chat id as used in identifiers and the authorization
// store: the leading sign is replaced by NegativeMarker exactly once.
func ChannelKey(chatID int64) string {
	return strings.Replace(strconv.FormatInt(chatID, 10), "-", NegativeMarker, 1)
}

// ChatIDFromKey reverses ChannelKey.
func ChatIDFromKey(key string) (int64, error) {
	raw := key
	if strings.HasPrefix(raw, NegativeMarker) {
		raw = "-" + strings.TrimPrefix(raw, NegativeMarker)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: channel %q: %v", ErrInvalidIdentifier, key, err)
	}

	return id, nil
}

// Derive builds the identifier of a submission received at the given time.
func Derive(at time.Time, chatID int64, messageID int) Identifier {
	return Identifier{
		Year:      at.Year(),
		Month:     int(at.Month()),
		Day:       at.Day(),
		Channel:   ChannelKey(chatID),
		MessageID: messageID,
	}
}

// String serializes the identifier as year-month-day-channel-message.
func (id Identifier) String() string {
	return strings.Join(id.Segments(), Separator)
}

// Segments returns the ordered path segments of the identifier. Joining them
// with Separator yields String.
func (id Identifier) Segments() []string {
	return []string{
		strconv.Itoa(id.Year),
		strconv.Itoa(id.Month),
		strconv.Itoa(id.Day),
		id.Channel,
		strconv.Itoa(id.MessageID),
	}
}

// ChatID decodes the originating chat id.
func (id Identifier) ChatID() (int64, error) {
	return ChatIDFromKey(id.Channel)
}

// Validate checks that every segment is well formed.
func (id Identifier) Validate() error {
	if id.Year <= 0 || id.Month < 1 || id.Month > 12 || id.Day < 1 || id.Day > 31 {
		return fmt.Errorf("%w: date %d-%d-%d", ErrInvalidIdentifier, id.Year, id.Month, id.Day)
	}
	if id.Channel == "" || strings.ContainsAny(id.Channel, Separator+`/\.`) {
		return fmt.Errorf("%w: channel %q", ErrInvalidIdentifier, id.Channel)
	}
	if id.MessageID <= 0 {
		return fmt.Errorf("%w: message id %d", ErrInvalidIdentifier, id.MessageID)
	}

	return nil
}

// ParseIdentifier decodes a serialized identifier.
func ParseIdentifier(raw string) (Identifier, error) {
	return FromSegments(strings.Split(strings.TrimSpace(raw), Separator))
}

// FromSegments rebuilds an identifier from its path segments.
func FromSegments(segments []string) (Identifier, error) {
	if len(segments) != identifierSegments {
		return Identifier{}, fmt.Errorf("%w: expected %d segments, got %d", ErrInvalidIdentifier, identifierSegments, len(segments))
	}

	numbers := make([]int, 0, 4)
	for _, idx := range []int{0, 1, 2, 4} {
		n, err := strconv.Atoi(segments[idx])
		if err != nil {
			return Identifier{}, fmt.Errorf("%w: segment %q: %v", ErrInvalidIdentifier, segments[idx], err)
		}
		numbers = append(numbers, n)
	}

	id := Identifier{
		Year:      numbers[0],
		Month:     numbers[1],
		Day:       numbers[2],
		Channel:   segments[3],
		MessageID: numbers[3],
	}

	if err := id.Validate(); err != nil {
		return Identifier{}, err
	}

	return id, nil
}

// CallbackData builds the inline button payload for an action.
func CallbackData(action string, id Identifier) string {
	return action + Separator + id.String()
}

// ParseCallback splits a callback payload into its action tag and identifier.
func ParseCallback(payload string) (string, Identifier, error) {
	segments := strings.Split(strings.TrimSpace(payload), Separator)
	if len(segments) < identifierSegments+1 {
		return "", Identifier{}, fmt.Errorf("%w: callback %q has %d segments", ErrInvalidIdentifier, payload, len(segments))
	}

	action := segments[0]
	switch action {
	case ActionPrint, ActionCancel, ActionInfo:
	default:
		return "", Identifier{}, fmt.Errorf("%w: unknown action %q", ErrInvalidIdentifier, action)
	}

	id, err := FromSegments(segments[1:])
	if err != nil {
		return "", Identifier{}, err
	}

	return action, id, nil
}
