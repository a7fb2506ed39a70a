package domain

import "unicode/utf16"

const (
	gsmSegmentLimit     = 160
	unicodeSegmentLimit = 70
	maxSegments         = 5
)

// MessageStats is advisory length accounting for a message body. It is shown
// to the sender; nothing in the send path enforces it.
type MessageStats struct {
	IsUnicode     bool `json:"is_unicode"`
	Segments      int  `json:"segments"`
	LimitPerSMS   int  `json:"limit_per_sms"`
	MaxLength     int  `json:"max_length"`
	CurrentLength int  `json:"current_length"`
	Remaining     int  `json:"remaining"`
}

// ComputeStats counts length in UTF-16 code units, which is what handsets and
// the gateway count for unicode messages.
func ComputeStats(text string) MessageStats {
	units := len(utf16.Encode([]rune(text)))
	unicode := false
	for _, r := range text {
		if r > 127 {
			unicode = true
			break
		}
	}

	limit := gsmSegmentLimit
	if unicode {
		limit = unicodeSegmentLimit
	}
	segments := 0
	if units > 0 {
		segments = (units + limit - 1) / limit
	}
	maxLength := maxSegments * limit

	return MessageStats{
		IsUnicode:     unicode,
		Segments:      segments,
		LimitPerSMS:   limit,
		MaxLength:     maxLength,
		CurrentLength: units,
		Remaining:     maxLength - units,
	}
}
