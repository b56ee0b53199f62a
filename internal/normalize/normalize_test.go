package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"hello", "hello"},
		{"  a   b\t\nc  ", "a b c"},
		{"already clean", "already clean"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Text(tt.in), "Text(%q)", tt.in)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"waitlist mention", "Wait listed via email", "waitlisted"},
		{"waitlist exact", "Waitlisted", "waitlisted"},
		{"interview lower", "interview scheduled", "interview"},
		{"interview upper", "INTERVIEW", "interview"},
		{"interview mixed", "Phone Interview on 2 Feb", "interview"},
		{"accepted with date", "Accepted on 15 Mar", "accepted: 15 mar"},
		{"accepted colon form", "Accepted: 3 Apr via portal", "accepted: 3 apr"},
		{"accepted no date", "Accepted", "accepted"},
		{"rejected with date", "Rejected on 1 Jan", "rejected: 1 jan"},
		{"rejected no date", "Rejected via website", "rejected"},
		{"other passes through folded", "Other on 9 Sep", "other on 9 sep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Status(tt.in))
		})
	}
}

func TestStatusInterviewAnyCaseIsExactToken(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Interview", "interview", "INTERVIEW", "InTeRvIeW scheduled"} {
		require.Equal(t, "interview", Status(in))
	}
}

func TestEntryNormalizesAllFields(t *testing.T) {
	t.Parallel()

	in := pipeline.Entry{
		ResultID:   "123",
		University: "  Georgia   Tech ",
		Program:    "Machine\tLearning",
		Status:     "Accepted on 15 Mar",
		Comments:   " two  spaces ",
		GPA:        " 3.9 ",
	}
	out := Entry(in)
	require.Equal(t, "Georgia Tech", out.University)
	require.Equal(t, "Machine Learning", out.Program)
	require.Equal(t, "accepted: 15 mar", out.Status)
	require.Equal(t, "two spaces", out.Comments)
	require.Equal(t, "3.9", out.GPA)

	// Input is untouched.
	require.Equal(t, "  Georgia   Tech ", in.University)
}

func TestEntryIsIdempotent(t *testing.T) {
	t.Parallel()

	in := pipeline.Entry{Status: "Rejected on 1 Jan", Program: " a  b "}
	once := Entry(in)
	twice := Entry(once)
	require.Equal(t, once, twice)
}
