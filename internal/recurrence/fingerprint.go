package recurrence

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint digests the fields that influence expansion, resolving a nil
// rule location to the engine default. Extra is carried through uninterpreted
// and is not part of the digest. Two rules with the same fingerprint on the
// same engine plan the same occurrences.
func (e *Engine) Fingerprint(rule Rule) string {
	loc := rule.Location
	if loc == nil {
		loc = e.location
	}
	return fingerprint(rule, loc)
}

func fingerprint(rule Rule, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString(string(rule.Periodicity))
	b.WriteByte('|')
	b.WriteString(civilDate(rule.StartDate).Format("2006-01-02"))
	b.WriteByte('|')
	if rule.EndDate != nil {
		b.WriteString(civilDate(*rule.EndDate).Format("2006-01-02"))
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(rule.DayOfWeek))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(rule.DayOfMonth))
	b.WriteByte('|')
	b.WriteString(rule.StartTime.String())
	b.WriteByte('|')
	b.WriteString(rule.EndTime.String())
	b.WriteByte('|')
	b.WriteString(loc.String())

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
