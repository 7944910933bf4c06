package blocklist

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Block kinds.
const (
	KindPermanent = "permanent"
	KindTemporary = "temporary"
	KindOther     = "other"
)

// permanentYear is the sentinel unblock year the site uses for lifetime
// blocks.
const permanentYear = 2079

// cutoverHour is the local hour from which the previous day's listing is
// complete on the site.
const cutoverHour = 6

var slashDateRe = regexp.MustCompile(`^\s*(\d{4})/(\d{1,2})/(\d{1,2})\s*$`)

// parseSlashDate parses the site's YYYY/M/D form.
func parseSlashDate(s string) (time.Time, bool) {
	m := slashDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
}

// Classify maps a record's block span onto a kind: an unblock year at or
// past the sentinel is permanent, a 1-7 day span is temporary, everything
// else (including unparsable dates) is other.
func Classify(blockDate, unblockDate string) string {
	unblock, okU := parseSlashDate(unblockDate)
	if okU && unblock.Year() >= permanentYear {
		return KindPermanent
	}

	block, okB := parseSlashDate(blockDate)
	if okB && okU {
		days := int(unblock.Sub(block) / (24 * time.Hour))
		if days >= 1 && days <= 7 {
			return KindTemporary
		}
	}
	return KindOther
}

// LatestAvailable returns the most recent day the site has fully published:
// before the cutover hour that is two days ago, from the cutover on it is
// yesterday.
func LatestAvailable(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() < cutoverHour {
		return day.AddDate(0, 0, -2)
	}
	return day.AddDate(0, 0, -1)
}

// isoToSlash converts 2006-01-02 to the site's 2006/01/02 request form.
func isoToSlash(iso string) string {
	return strings.ReplaceAll(iso, "-", "/")
}

// slashToISO normalizes a site date to zero-padded ISO, or "" when it does
// not parse.
func slashToISO(s string) string {
	t, ok := parseSlashDate(s)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}
