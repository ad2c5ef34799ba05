// Package hebrew rewrites numeric times and dates as Hebrew words: speech
// synthesis mispronounces "14:00" and "18/12" in Hebrew text.
package hebrew

import (
	"regexp"
	"strconv"
)

var (
	timePattern = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	datePattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)
)

var ones = [10]string{"", "אחת", "שתיים", "שלוש", "ארבע", "חמש", "שש", "שבע", "שמונה", "תשע"}

var tens = [6]string{"", "עשר", "עשרים", "שלושים", "ארבעים", "חמישים"}

var teens = [10]string{
	"עשר", "אחת עשרה", "שתיים עשרה", "שלוש עשרה", "ארבע עשרה",
	"חמש עשרה", "שש עשרה", "שבע עשרה", "שמונה עשרה", "תשע עשרה",
}

func numberWord(num int) string {
	switch {
	case num == 0:
		return "אפס"
	case num < 10:
		return ones[num]
	case num < 20:
		return teens[num-10]
	case num < 60:
		tensWord := tens[num/10]
		if num%10 == 0 {
			return tensWord
		}
		return tensWord + " ו" + ones[num%10]
	default:
		return strconv.Itoa(num)
	}
}

// NumbersToHebrew converts times (HH:MM, spoken 12-hour) first, then dates
// (DD/MM), leaving everything else untouched.
func NumbersToHebrew(text string) string {
	text = timePattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := timePattern.FindStringSubmatch(match)

		hour, _ := strconv.Atoi(groups[1])
		if hour > 12 {
			hour -= 12
		} else if hour == 0 {
			hour = 12
		}

		minutes := groups[2]
		if minutes == "00" {
			return numberWord(hour)
		}

		minute, _ := strconv.Atoi(minutes)
		return numberWord(hour) + " ו" + numberWord(minute)
	})

	text = datePattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := datePattern.FindStringSubmatch(match)

		day, _ := strconv.Atoi(groups[1])
		month, _ := strconv.Atoi(groups[2])

		return numberWord(day) + " ל" + numberWord(month)
	})

	return text
}
