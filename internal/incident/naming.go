package incident

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	channelPrefix = "i-"
	fallbackStem  = "sereno"
	maxStemLen    = 14
	dateLayout    = "02-01-06"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ChannelName derives the incident channel name from a user-provided
// incident name: lower-cased, diacritics stripped, non-alphanumeric runs
// collapsed to single hyphens, capped at 14 characters, with today's date
// appended. "Database Outage" on 2024-01-05 becomes
// "i-database-outag-05-01-24".
func ChannelName(name string, day time.Time) string {
	stem := sanitize(name)
	if len(stem) > maxStemLen {
		stem = strings.Trim(stem[:maxStemLen], "-")
	}
	return channelPrefix + stem + "-" + day.Format(dateLayout)
}

// SequenceChannelName derives the channel name used when no incident name
// was given: "i-sereno-<date>_<n+1>" where n is the number of incidents the
// team already opened today.
func SequenceChannelName(day time.Time, todayCount int) string {
	return fmt.Sprintf("%s%s-%s_%d", channelPrefix, fallbackStem, day.Format(dateLayout), todayCount+1)
}

func sanitize(name string) string {
	lowered := strings.ToLower(name)
	if folded, _, err := transform.String(deaccent, lowered); err == nil {
		lowered = folded
	}

	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
