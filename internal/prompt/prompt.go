// Package prompt builds the message list sent to the language model.
package prompt

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/autoconnect/internal/config"
	"github.com/nadzzz/autoconnect/internal/message"
)

// Unknown is reported for any caller attribute the edge did not supply.
const Unknown = "unknown"

// timeLayout renders times the way an en-US locale string does.
const timeLayout = "1/2/2006, 3:04:05 PM"

// System returns the assistant persona for the given caller.
func System(caller message.Caller) string {
	location := caller.Location
	if location == "" {
		location = Unknown
	}
	now := caller.Time
	if now == "" {
		now = Unknown
	}

	lines := []string{
		"You are Auto Connect AI, a friendly and helpful voice assistant.",
		"Respond briefly to the user's request, and do not provide unnecessary information.",
		"If you don't understand the user's request, ask for clarification.",
		"You will respond to the user in the language that matches their request or the language detected in their input.",
		"You do not have access to up-to-date information, so you should not provide real-time data.",
		"You are not capable of performing actions other than responding to the user.",
		"Do not use markdown, emojis, or other formatting in your responses. Respond in a way easily spoken by text-to-speech software.",
		"User location is " + location + ".",
		"The current time is " + now + ".",
		"Your large language model is Llama 3, created by Meta, the 8 billion parameter version. It is hosted on Groq, an AI infrastructure company that builds fast inference technology.",
		"Your text-to-speech service was created and is hosted by Elevenlabs.",
		"You are built in Go and served over HTTP.",
	}

	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(l)
	}
	return sb.String()
}

// Compose returns [system] ++ history ++ [user transcript] as a new slice.
// history is not modified.
func Compose(caller message.Caller, history []message.Turn, transcript string) []message.Turn {
	out := make([]message.Turn, 0, len(history)+2)
	out = append(out, message.Turn{Role: message.RoleSystem, Content: System(caller)})
	out = append(out, history...)
	out = append(out, message.Turn{Role: message.RoleUser, Content: transcript})
	return out
}

// CallerFromHeaders resolves the caller's location and local time from the
// edge headers named in cfg. Location is Unknown unless city, region and
// country are all present. Time falls back to now's own zone when the
// timezone header is missing or not a known IANA zone.
func CallerFromHeaders(h http.Header, cfg config.EdgeConfig, now time.Time) message.Caller {
	country := h.Get(cfg.CountryHeader)
	region := h.Get(cfg.RegionHeader)
	city := h.Get(cfg.CityHeader)

	location := Unknown
	if country != "" && region != "" && city != "" {
		location = fmt.Sprintf("%s, %s, %s", city, region, country)
	}

	if tz := h.Get(cfg.TimezoneHeader); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}

	return message.Caller{
		Location: location,
		Time:     now.Format(timeLayout),
	}
}
