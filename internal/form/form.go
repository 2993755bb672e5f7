// Package form builds the prediction page's input controls from a forest's
// feature descriptors and resolves submitted values back into numbers.
package form

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// Widget is the kind of input element rendered for a control.
type Widget string

const (
	WidgetSelect    Widget = "select"
	WidgetDate      Widget = "date"
	WidgetSlider    Widget = "slider"
	WidgetIntSlider Widget = "int_slider"
	WidgetRadio     Widget = "radio"
	WidgetNumber    Widget = "number"
)

// DateLayout is the wire format of date inputs.
const DateLayout = "2006-01-02"

// YearWindowSize is the number of selectable years, starting at the current one.
const YearWindowSize = 3

var widgets = map[domain.FeatureKind]Widget{
	domain.KindYear:       WidgetSelect,
	domain.KindDayOfYear:  WidgetDate,
	domain.KindContinuous: WidgetSlider,
	domain.KindCount:      WidgetIntSlider,
	domain.KindBinary:     WidgetRadio,
	domain.KindNumeric:    WidgetNumber,
}

// Control is one input on the prediction form.
type Control struct {
	Name    string             `json:"name"`
	Kind    domain.FeatureKind `json:"kind"`
	Widget  Widget             `json:"widget"`
	Default float64            `json:"default"`
	Min     *float64           `json:"min,omitempty"`
	Max     *float64           `json:"max,omitempty"`
	Step    float64            `json:"step,omitempty"`
	Options []int              `json:"options,omitempty"`

	// Date controls only.
	DefaultDate string `json:"default_date,omitempty"`
	MinDate     string `json:"min_date,omitempty"`
	MaxDate     string `json:"max_date,omitempty"`
}

// Form is the full set of controls for one forest, in model column order.
type Form struct {
	Forest   string    `json:"forest"`
	Years    []int     `json:"years"`
	Controls []Control `json:"controls"`

	yearField string
}

// Build creates one control per feature. now anchors the year window.
func Build(forest string, features []domain.FeatureDescriptor, now time.Time) *Form {
	years := YearWindow(now)
	f := &Form{Forest: forest, Years: years, Controls: make([]Control, 0, len(features))}

	hasYear := false
	for _, d := range features {
		hasYear = hasYear || d.Kind == domain.KindYear
	}

	for _, d := range features {
		c := Control{Name: d.Name, Kind: d.Kind, Widget: widgets[d.Kind]}
		switch d.Kind {
		case domain.KindYear:
			c.Options = years
			c.Default = float64(years[0])
			f.yearField = d.Name
		case domain.KindDayOfYear:
			c = c.InYear(years[0])
			if !hasYear {
				// Without a year control the date picks the year too.
				c.MaxDate = lastDay(years[len(years)-1]).Format(DateLayout)
			}
		case domain.KindContinuous:
			c.Default = d.Mean
			c.Min, c.Max = ptr(d.Min), ptr(d.Max)
			c.Step = 0.1
		case domain.KindCount:
			c.Default = math.Round(d.Mean)
			c.Min, c.Max = ptr(d.Min), ptr(d.Max)
			c.Step = 1
		case domain.KindBinary:
			c.Default = d.Majority
			c.Min, c.Max = ptr(0), ptr(1)
			c.Step = 1
		default:
			c.Default = d.Mean
		}
		f.Controls = append(f.Controls, c)
	}
	return f
}

// InYear returns the date control anchored to year: the midpoint default and
// Jan 1 .. Dec 31 bounds. Other controls are returned unchanged.
func (c Control) InYear(year int) Control {
	if c.Kind != domain.KindDayOfYear {
		return c
	}
	mid := MidYear(year)
	c.Default = float64(mid.YearDay())
	c.DefaultDate = mid.Format(DateLayout)
	c.MinDate = firstDay(year).Format(DateLayout)
	c.MaxDate = lastDay(year).Format(DateLayout)
	return c
}

// Resolve turns raw control values into one number per feature. Controls
// without a submitted value take their default, as an untouched widget would.
func (f *Form) Resolve(inputs map[string]string) (map[string]float64, error) {
	return f.resolve(inputs)
}

// ResolveStrict is Resolve without defaults: every control must have a
// non-blank value. Missing values are both ErrInvalidInput and
// ErrSchemaMismatch.
func (f *Form) ResolveStrict(inputs map[string]string) (map[string]float64, error) {
	var missing []string
	for _, c := range f.Controls {
		if strings.TrimSpace(inputs[c.Name]) == "" {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w: missing %s", domain.ErrInvalidInput, domain.ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return f.resolve(inputs)
}

func (f *Form) resolve(inputs map[string]string) (map[string]float64, error) {
	known := make(map[string]struct{}, len(f.Controls))
	for _, c := range f.Controls {
		known[c.Name] = struct{}{}
	}
	for name := range inputs {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidInput, name)
		}
	}

	selectedYear := 0
	if f.yearField != "" {
		y, err := f.resolveYear(inputs[f.yearField])
		if err != nil {
			return nil, err
		}
		selectedYear = y
	}

	out := make(map[string]float64, len(f.Controls))
	for _, c := range f.Controls {
		raw := strings.TrimSpace(inputs[c.Name])
		var v float64
		var err error
		switch c.Kind {
		case domain.KindYear:
			v = float64(selectedYear)
		case domain.KindDayOfYear:
			v, err = f.resolveDay(c, raw, selectedYear)
		default:
			v, err = resolveNumber(c, raw)
		}
		if err != nil {
			return nil, err
		}
		out[c.Name] = v
	}
	return out, nil
}

// SelectedYear returns the valid year submitted in inputs. It reports false
// when the form has no year control or the value is blank or invalid.
func (f *Form) SelectedYear(inputs map[string]string) (int, bool) {
	if f.yearField == "" || strings.TrimSpace(inputs[f.yearField]) == "" {
		return 0, false
	}
	y, err := f.resolveYear(inputs[f.yearField])
	return y, err == nil
}

func (f *Form) resolveYear(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return f.Years[0], nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a year", domain.ErrInvalidInput, f.yearField, raw)
	}
	for _, allowed := range f.Years {
		if y == allowed {
			return y, nil
		}
	}
	return 0, fmt.Errorf("%w: %s: %d outside %d-%d", domain.ErrInvalidInput, f.yearField, y, f.Years[0], f.Years[len(f.Years)-1])
}

// resolveDay accepts a date or an ordinal day. With a year control the year
// select wins: a date elsewhere in the window keeps its month and day and
// moves to the selected year. Without one, the date may fall anywhere in the
// window.
func (f *Form) resolveDay(c Control, raw string, selectedYear int) (float64, error) {
	years := f.Years
	if selectedYear != 0 {
		years = []int{selectedYear}
	}
	if raw == "" {
		return float64(MidYear(years[0]).YearDay()), nil
	}

	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > DaysIn(years[0]) {
			return 0, fmt.Errorf("%w: %s: day %d outside 1-%d", domain.ErrInvalidInput, c.Name, n, DaysIn(years[0]))
		}
		return float64(n), nil
	}

	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a date", domain.ErrInvalidInput, c.Name, raw)
	}
	if !slices.Contains(f.Years, date.Year()) {
		return 0, fmt.Errorf("%w: %s: %s outside %d-%d", domain.ErrInvalidInput, c.Name, raw, f.Years[0], f.Years[len(f.Years)-1])
	}
	if selectedYear != 0 {
		if date, err = AnchorDate(date, selectedYear); err != nil {
			return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, c.Name, err)
		}
	}
	return float64(date.YearDay()), nil
}

func resolveNumber(c Control, raw string) (float64, error) {
	if raw == "" {
		return c.Default, nil
	}

	var v float64
	if c.Kind == domain.KindBinary {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %q is not 0 or 1", domain.ErrInvalidInput, c.Name, raw)
		}
		if b {
			v = 1
		}
		return v, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s: %q is not a number", domain.ErrInvalidInput, c.Name, raw)
	}
	if c.Kind == domain.KindCount && v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %s: %g is not a whole number", domain.ErrInvalidInput, c.Name, v)
	}
	if (c.Min != nil && v < *c.Min) || (c.Max != nil && v > *c.Max) {
		return 0, fmt.Errorf("%w: %s: %g outside [%g, %g]", domain.ErrInvalidInput, c.Name, v, *c.Min, *c.Max)
	}
	return v, nil
}

// YearWindow returns the current calendar year and the following ones.
func YearWindow(now time.Time) []int {
	years := make([]int, YearWindowSize)
	for i := range years {
		years[i] = now.Year() + i
	}
	return years
}

// DayOfYear converts a date in year to its ordinal day, 1-366.
func DayOfYear(date time.Time, year int) (int, error) {
	if date.Year() != year {
		return 0, fmt.Errorf("%w: %s is not in %d", domain.ErrInvalidInput, date.Format(DateLayout), year)
	}
	return date.YearDay(), nil
}

// DaysIn returns 365 or 366.
func DaysIn(year int) int {
	return lastDay(year).YearDay()
}

// AnchorDate moves date to year, keeping month and day. Feb 29 has no
// counterpart in a common year.
func AnchorDate(date time.Time, year int) (time.Time, error) {
	anchored := time.Date(year, date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if anchored.Month() != date.Month() {
		return time.Time{}, fmt.Errorf("%s has no counterpart in %d", date.Format(DateLayout), year)
	}
	return anchored, nil
}

// MidYear returns the midpoint date of year: July 2 in both common and leap years.
func MidYear(year int) time.Time {
	return firstDay(year).AddDate(0, 0, DaysIn(year)/2)
}

func firstDay(year int) time.Time { return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC) }
func lastDay(year int) time.Time  { return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC) }

func ptr(v float64) *float64 { return &v }
