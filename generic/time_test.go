package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// DATE PARSING
// =============================================================================

func TestParseDate_AcceptedLayouts(t *testing.T) {
	want := generic.NewDate(2024, time.March, 10)

	cases := map[string]string{
		"iso":       "2024-03-10",
		"brazilian": "10/03/2024",
		"rfc3339":   "2024-03-10T18:45:00Z",
		"padded":    "  2024-03-10 ",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := generic.ParseDate(input)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %s", got)
		})
	}
}

func TestParseDate_BrazilianWithoutPadding(t *testing.T) {
	cases := map[string]generic.Date{
		"5/3/2024":  generic.NewDate(2024, time.March, 5),
		"15/3/2024": generic.NewDate(2024, time.March, 15),
		"5/11/2024": generic.NewDate(2024, time.November, 5),
		"05/3/2024": generic.NewDate(2024, time.March, 5),
		"29/2/2024": generic.NewDate(2024, time.February, 29),
	}
	for input, want := range cases {
		got, err := generic.ParseDate(input)
		require.NoError(t, err, input)
		assert.True(t, got.Equal(want), "%s: got %s", input, got)
	}

	_, err := generic.ParseDate("29/2/2023")
	assert.ErrorIs(t, err, generic.ErrMalformedDate)
}

func TestParseDate_Malformed(t *testing.T) {
	for _, input := range []string{"", "31/31/2023", "2024-13-01", "march 10"} {
		_, err := generic.ParseDate(input)
		require.Error(t, err, input)
		assert.ErrorIs(t, err, generic.ErrMalformedDate)
		assert.True(t, generic.IsClientError(err))
	}
}

func TestParseDateOr_FallsBackOnMalformedInput(t *testing.T) {
	// GIVEN: A hand-typed legacy date that cannot be parsed
	def := generic.NewDate(2023, time.May, 2)

	// WHEN: Parsing with a fallback
	got := generic.ParseDateOr("31/31/2023", def)

	// THEN: The fallback is used instead of failing
	assert.True(t, got.Equal(def))
	assert.True(t, generic.ParseDateOr("2023-06-01", def).Equal(generic.NewDate(2023, time.June, 1)))
}

func TestDate_TextRoundTrip(t *testing.T) {
	var d generic.Date
	require.NoError(t, d.UnmarshalText([]byte("05/02/2025")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-02-05", string(text))

	var empty generic.Date
	require.NoError(t, empty.UnmarshalText(nil))
	assert.True(t, empty.IsZero())
	assert.Equal(t, "", empty.String())
}

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	jan31 := generic.NewDate(2024, time.January, 31)

	assert.Equal(t, "2024-02-29", jan31.AddMonths(1).String())
	assert.Equal(t, "2024-04-30", jan31.AddMonths(3).String())
	assert.Equal(t, "2023-12-31", jan31.AddMonths(-1).String())
}

func TestAddYears_LeapDayAnchor(t *testing.T) {
	leap := generic.NewDate(2024, time.February, 29)
	assert.Equal(t, "2025-02-28", leap.AddYears(1).String())
	assert.Equal(t, "2028-02-29", leap.AddYears(4).String())
}

func TestDayInMonth_Clamps(t *testing.T) {
	assert.Equal(t, "2025-04-30", generic.DayInMonth(2025, time.April, 31).String())
	assert.Equal(t, "2025-02-28", generic.DayInMonth(2025, time.February, 30).String())
	assert.Equal(t, "2025-02-01", generic.DayInMonth(2025, time.February, 0).String())
}

func TestMonthsBetween(t *testing.T) {
	from := generic.NewMonth(2024, time.February)

	assert.Equal(t, 0, generic.MonthsBetween(from, from))
	assert.Equal(t, 6, generic.MonthsBetween(from, generic.NewMonth(2024, time.August)))
	assert.Equal(t, 12, generic.MonthsBetween(from, generic.NewMonth(2025, time.February)))
	assert.Equal(t, -1, generic.MonthsBetween(from, generic.NewMonth(2024, time.January)))
}

func TestDaysBetween(t *testing.T) {
	a := generic.NewDate(2024, time.May, 10)
	b := generic.NewDate(2024, time.May, 15)

	assert.Equal(t, 5, generic.DaysBetween(a, b))
	assert.Equal(t, -5, generic.DaysBetween(b, a))
	assert.Equal(t, 366, generic.DaysBetween(generic.NewDate(2024, 1, 1), generic.NewDate(2025, 1, 1)))
}

func TestMaxDate(t *testing.T) {
	got := generic.MaxDate(
		generic.NewDate(2024, 3, 1),
		generic.NewDate(2025, 1, 1),
		generic.NewDate(2024, 12, 31),
	)
	assert.Equal(t, "2025-01-01", got.String())
	assert.True(t, generic.MaxDate().IsZero())
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPaymentPeriod(t *testing.T) {
	tests := []struct {
		name       string
		paymentDay int
		date       generic.Date
		start, end string
	}{
		{"after payment day", 10, generic.NewDate(2024, 5, 15), "2024-05-10", "2024-06-09"},
		{"on payment day", 10, generic.NewDate(2024, 5, 10), "2024-05-10", "2024-06-09"},
		{"before payment day", 10, generic.NewDate(2024, 5, 3), "2024-04-10", "2024-05-09"},
		{"day 31 in short month", 31, generic.NewDate(2024, 4, 30), "2024-04-30", "2024-05-30"},
		{"year boundary", 20, generic.NewDate(2025, 1, 5), "2024-12-20", "2025-01-19"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := generic.PaymentPeriod(tt.paymentDay, tt.date)
			assert.Equal(t, tt.start, p.Start.String())
			assert.Equal(t, tt.end, p.End.String())
			assert.True(t, p.Contains(tt.date))
		})
	}
}

func TestPeriod_MonthsAndLength(t *testing.T) {
	p := generic.Period{Start: generic.NewDate(2024, 11, 15), End: generic.NewDate(2025, 2, 1)}

	months := p.Months()
	require.Len(t, months, 4)
	assert.Equal(t, "2024-11", months[0].String())
	assert.Equal(t, "2025-02", months[3].String())
	assert.Equal(t, 79, p.Length())
	assert.NoError(t, p.Validate())

	inverted := generic.Period{Start: p.End, End: p.Start}
	assert.ErrorIs(t, inverted.Validate(), generic.ErrInvalidPeriod)
	assert.Nil(t, inverted.Months())
	assert.Equal(t, 0, inverted.Length())
}

// =============================================================================
// MONEY
// =============================================================================

func TestMoney_DisplayRoundsOnlyOnOutput(t *testing.T) {
	// GIVEN: 425/3 kept at full precision
	m := generic.NewMoney(425, generic.CurrencyBRL).Div(decimal.NewFromInt(3))

	// THEN: Display shows two places but the value is untouched
	assert.Equal(t, "141.67", m.Display())
	assert.False(t, m.Value.Equal(m.Rounded().Value))
	assert.Equal(t, "141.67", m.Rounded().Value.String())
}

func TestSum_KeepsFirstCurrency(t *testing.T) {
	total := generic.Sum(
		generic.NewMoney(10.5, generic.CurrencyUSD),
		generic.NewMoney(4.25, generic.CurrencyUSD),
	)
	assert.Equal(t, "14.75", total.Display())
	assert.Equal(t, generic.CurrencyUSD, total.Currency)
	assert.Equal(t, generic.DefaultCurrency, generic.Sum().Currency)
}

func TestErrorHelpers(t *testing.T) {
	cfg := &generic.IncompleteConfigurationError{Field: "payment_day", Reason: "missing"}
	assert.ErrorIs(t, cfg, generic.ErrIncompleteConfiguration)
	assert.False(t, generic.IsClientError(cfg))

	ooo := &generic.OutOfOrderError{ContractID: "c1", Effective: generic.NewDate(2024, 1, 1), Latest: generic.NewDate(2025, 1, 1)}
	assert.True(t, generic.IsClientError(ooo))

	assert.True(t, generic.IsConflict(generic.ErrDuplicateIdempotencyKey))
	assert.True(t, generic.IsNotFound(generic.ErrContractNotFound))
}
