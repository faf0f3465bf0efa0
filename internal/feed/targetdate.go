package feed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// Titles carry their publication day, e.g. "Daily verse for 15 March 2024".
var reTitleDate = regexp.MustCompile(`(\d\d?) ([a-zA-Z]{3})\S* (\d\d\d\d)`)

var monthPrefixes = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// ParseTargetDate extracts the delivery date from an entry title. The year
// must be within one year of now.
func ParseTargetDate(title string, now time.Time) (domain.TargetDate, error) {
	m := reTitleDate.FindStringSubmatch(title)
	if m == nil {
		return domain.TargetDate{}, fmt.Errorf("%w: %q", domain.ErrNoTargetDate, title)
	}

	month := 0
	for i, p := range monthPrefixes {
		if strings.ToLower(m[2]) == p {
			month = i + 1
			break
		}
	}
	if month == 0 {
		return domain.TargetDate{}, fmt.Errorf("%w: could not identify month %q", domain.ErrNoTargetDate, m[2])
	}

	day, _ := strconv.Atoi(m[1])
	if day < 1 || day > 31 {
		return domain.TargetDate{}, fmt.Errorf("%w: invalid day of the month %d", domain.ErrNoTargetDate, day)
	}

	year, _ := strconv.Atoi(m[3])
	if this := now.Year(); year < this-1 || year > this+1 {
		return domain.TargetDate{}, fmt.Errorf("%w: invalid year %d", domain.ErrNoTargetDate, year)
	}

	return domain.TargetDate{Day: day, Month: month, Year: year}, nil
}
