// Package gps collects NMEA data from the GPS receiver and bridges its
// UART to the debug console.
package gps

import (
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// Data caches the tokens of the latest RMC and GGA sentences.
// It's safe for concurrent use.
type Data struct {
	lock sync.RWMutex
	rmc  []string
	gga  []string
}

// UpdateRMC replaces the RMC tokens.
func (d *Data) UpdateRMC(tokens []string) {
	d.lock.Lock()
	d.rmc = append([]string(nil), tokens...)
	d.lock.Unlock()
}

// UpdateGGA replaces the GGA tokens.
func (d *Data) UpdateGGA(tokens []string) {
	d.lock.Lock()
	d.gga = append([]string(nil), tokens...)
	d.lock.Unlock()
}

// RMC returns a copy of the RMC tokens.
func (d *Data) RMC() []string {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return append([]string(nil), d.rmc...)
}

// GGA returns a copy of the GGA tokens.
func (d *Data) GGA() []string {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return append([]string(nil), d.gga...)
}

// HasFix tells if the latest RMC sentence reports a valid fix.
func (d *Data) HasFix() bool {
	rmc := d.RMC()
	return len(rmc) > 2 && rmc[2] == "A"
}

// UnixTime returns the UTC time of a valid RMC fix.
func (d *Data) UnixTime() (uint32, bool) {
	rmc := d.RMC()
	if len(rmc) < 10 || rmc[2] != "A" {
		return 0, false
	}
	t, err := nmea.ParseTime(rmc[1])
	if err != nil || !t.Valid {
		return 0, false
	}
	date, err := nmea.ParseDate(rmc[9])
	if err != nil || !date.Valid {
		return 0, false
	}
	year := 2000 + date.YY
	if date.YY >= 69 {
		year = 1900 + date.YY
	}
	ts := time.Date(year, time.Month(date.MM), date.DD, t.Hour, t.Minute, t.Second, 0, time.UTC)
	return uint32(ts.Unix()), true
}

// Sentence is a checked sentence kept as raw tokens.
type Sentence struct {
	// Type without the talker, e.g. "RMC" for "$GPRMC" and "$GNRMC".
	Type string
	// Tokens are "$<talker><type>" followed by the fields.
	Tokens []string
}

// RMC and GGA keep their raw fields, empty fields of a receiver without
// fix must not fail the sentence.
var sentenceParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		nmea.TypeRMC: rawSentence,
		nmea.TypeGGA: rawSentence,
	},
}

func rawSentence(s nmea.BaseSentence) (nmea.Sentence, error) {
	return s, nil
}

// ParseSentence verifies the checksum of line and splits it into tokens.
func ParseSentence(line string) (Sentence, error) {
	parsed, err := sentenceParser.Parse(strings.TrimSpace(line))
	if err != nil {
		return Sentence{}, err
	}
	var base nmea.BaseSentence
	switch s := parsed.(type) {
	case nmea.BaseSentence:
		base = s
	case nmea.RMC:
		base = s.BaseSentence
	case nmea.GGA:
		base = s.BaseSentence
	default:
		return Sentence{Type: parsed.DataType()}, nil
	}
	tokens := make([]string, 0, len(base.Fields)+1)
	tokens = append(tokens, "$"+base.Prefix())
	return Sentence{Type: base.Type, Tokens: append(tokens, base.Fields...)}, nil
}
