package tracking

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONLinesSource_SkipsBadLines(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"lat":45.1,"lon":-93.2,"accuracy":8,"timestamp":"2025-06-01T09:00:00Z"}`,
		`not json`,
		``,
		`{"id":"7b0e7bd4-7d3a-4d35-8a39-4f6c2f1e2a11","lat":45.2,"lon":-93.2,"accuracy":6,"battery":40,"timestamp":"2025-06-01T09:01:00Z"}`,
	}, "\n")

	fixes, errs := NewJSONLinesSource(strings.NewReader(input)).Watch(context.Background())

	var got []Fix
	var gotErrs []error
	for fixes != nil || errs != nil {
		select {
		case f, ok := <-fixes:
			if !ok {
				fixes = nil
				continue
			}
			got = append(got, f)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			gotErrs = append(gotErrs, err)
		}
	}

	require.Len(t, got, 2)
	require.Len(t, gotErrs, 1)
	require.Contains(t, gotErrs[0].Error(), "line 2")
	require.NotNil(t, got[1].Battery)

	p, err := got[1].Point(1, 2)
	require.NoError(t, err)
	require.Equal(t, "7b0e7bd4-7d3a-4d35-8a39-4f6c2f1e2a11", p.ID.String())
	require.Equal(t, int64(1), p.DeliveryID)
}

func TestFix_PointRejectsBadID(t *testing.T) {
	t.Parallel()

	_, err := Fix{ID: "nope"}.Point(1, 2)
	require.Error(t, err)
}
