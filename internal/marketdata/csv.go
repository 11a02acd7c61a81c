package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/quantmill/uptrend/internal/calendar"
	"github.com/quantmill/uptrend/internal/gates"
	"github.com/quantmill/uptrend/internal/series"
)

// Instrument is one listed security from the reference file.
type Instrument struct {
	Symbol   string
	Name     string
	ListDate string // YYYYMMDD
}

// LoadInstruments reads the instrument reference CSV. Vendor exports ship
// GB18030-encoded names; the reader transcodes to UTF-8. Expected header:
// symbol,name,list_date.
func LoadInstruments(path string) ([]Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open instruments: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, simplifiedchinese.GB18030.NewDecoder()))
	r.FieldsPerRecord = 3
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("marketdata: instruments header: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(header[0])) != "symbol" {
		return nil, fmt.Errorf("marketdata: unexpected instruments header %q", header[0])
	}

	var out []Instrument
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: instruments row: %w", err)
		}
		inst := Instrument{
			Symbol:   strings.TrimSpace(rec[0]),
			Name:     strings.TrimSpace(rec[1]),
			ListDate: strings.TrimSpace(rec[2]),
		}
		if inst.Symbol == "" || len(inst.ListDate) != 8 {
			return nil, fmt.Errorf("marketdata: bad instrument row for %q", rec[0])
		}
		out = append(out, inst)
	}
	return out, nil
}

// LoadSTPeriods reads the special-treatment flag windows. Expected header:
// symbol,start,end with YYYYMMDD dates, inclusive on both ends.
func LoadSTPeriods(path string) (gates.STTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open st periods: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, simplifiedchinese.GB18030.NewDecoder()))
	r.FieldsPerRecord = 3
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("marketdata: st periods header: %w", err)
	}
	table := make(gates.STTable)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: st periods row: %w", err)
		}
		sym := strings.TrimSpace(rec[0])
		start, end := strings.TrimSpace(rec[1]), strings.TrimSpace(rec[2])
		if sym == "" || len(start) != 8 || len(end) != 8 || start > end {
			return nil, fmt.Errorf("marketdata: bad st window for %q", rec[0])
		}
		table[sym] = append(table[sym], gates.STPeriod{Start: start, End: end})
	}
	return table, nil
}

// ListingFilter marks, per trading date, the symbols listed long enough to
// trade. Age is counted in calendar days from the listing date, which keeps
// the rule independent of how much history the factor axis carries.
func ListingFilter(instruments []Instrument, cal *calendar.Calendar, minAgeDays int) *series.Bool {
	dates := cal.Dates()
	out := series.NewBool(dates)
	parsed := make([]time.Time, len(dates))
	for i, d := range dates {
		parsed[i], _ = time.Parse("20060102", d)
	}
	for _, inst := range instruments {
		listed, err := time.Parse("20060102", inst.ListDate)
		if err != nil {
			continue
		}
		eligibleFrom := listed.AddDate(0, 0, minAgeDays)
		col := make([]bool, len(dates))
		for i := range dates {
			col[i] = !parsed[i].Before(eligibleFrom)
		}
		out.SetColumn(inst.Symbol, col)
	}
	return out
}
