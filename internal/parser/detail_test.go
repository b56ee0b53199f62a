package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const detailHTML = `
<html><body>
  <dl>
    <div><dt>Program</dt><dd>Computer   Science</dd></div>
    <div><dt>Degree Type</dt><dd>PhD</dd></div>
    <div><dt>Notes</dt><dd>Great fit,
        emailed POI first.</dd></div>
    <div><dt>Undergrad GPA</dt><dd>3.85</dd></div>
  </dl>
  <div>
    <span>GRE General:</span><span>325</span>
    <span>GRE Verbal:</span><span>160</span>
    <span>Analytical Writing:</span><span>4.5</span>
  </div>
</body></html>`

func TestParseDetailExtractsLabelValuePairs(t *testing.T) {
	t.Parallel()

	fields := ParseDetail([]byte(detailHTML))
	require.Equal(t, "Computer Science", fields.Program)
	require.Equal(t, "PhD", fields.DegreeType)
	require.Equal(t, "Great fit, emailed POI first.", fields.Comments)
	require.Equal(t, "3.85", fields.GPA)
	require.Equal(t, "325", fields.GREGeneral)
	require.Equal(t, "160", fields.GREVerbal)
	require.Equal(t, "4.5", fields.GREAnalytical)
}

func TestParseDetailZeroScoresNormalizeToEmpty(t *testing.T) {
	t.Parallel()

	html := `
<dl>
  <div><dt>Undergrad GPA</dt><dd>0.00</dd></div>
</dl>
<span>GRE General:</span><span>0</span>
<span>GRE Verbal:</span><span>155</span>
<span>Analytical Writing:</span><span>99.99</span>`

	fields := ParseDetail([]byte(html))
	require.Empty(t, fields.GPA)
	require.Empty(t, fields.GREGeneral)
	require.Equal(t, "155", fields.GREVerbal)
	require.Empty(t, fields.GREAnalytical)

	// Idempotence: a second pass over already-empty values stays empty.
	require.Empty(t, blankPlaceholder(fields.GPA))
}

func TestParseDetailUnmatchedLabelsYieldEmptyStrings(t *testing.T) {
	t.Parallel()

	fields := ParseDetail([]byte("<html><body><p>not a detail page</p></body></html>"))
	require.Equal(t, DetailFields{}, fields)
}

func TestParseDetailPlaceholderTable(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"0", "0.0", "0.00", "99.99"} {
		require.Empty(t, blankPlaceholder(v))
	}
	require.Equal(t, "3.7", blankPlaceholder("3.7"))
	require.Empty(t, blankPlaceholder(""))
}
