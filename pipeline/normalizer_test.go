package pipeline_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-build/ogc-pipeline/pipeline"
)

// TestNormalizeSubmissions tests tabular export normalization
func TestNormalizeSubmissions(t *testing.T) {
	t.Parallel()

	t.Run("it maps form headers to canonical fields", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "Timestamp,Your Stellar Address (Public Key),Contact,Open Source Project Name,Project Repository URL\n" +
			"2021-03-01 10:00:00," + address(1) + ",dev@example.org,tools,https://example.org/repo\n"

		// Act
		subs, dropped, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		require.NoError(t, err)
		assert.Empty(t, dropped)
		require.Len(t, subs, 1)
		assert.Equal(t, address(1), subs[0].Address)
		assert.Equal(t, "dev@example.org", subs[0].Contact)
		assert.Equal(t, "tools", subs[0].ProjectName)
		assert.Equal(t, "https://example.org/repo", subs[0].ProjectURL)
		assert.Equal(t, time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC), subs[0].SubmittedAt)
	})

	t.Run("it accepts columns in any order and ignores unknown ones", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "Notes,Project Name,Address\n" +
			"some note,tools," + address(1) + "\n"

		// Act
		subs, _, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, address(1), subs[0].Address)
		assert.Equal(t, "tools", subs[0].ProjectName)
	})

	t.Run("it tolerates a byte order mark before the header", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "\uFEFFAddress\n" + address(1) + "\n"

		// Act
		subs, _, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, address(1), subs[0].Address)
	})

	t.Run("it drops rows without an address and keeps going", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "Address,Contact\n" +
			address(1) + ",one@example.org\n" +
			",two@example.org\n" +
			address(3) + ",three@example.org\n"

		// Act
		subs, dropped, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, address(1), subs[0].Address)
		assert.Equal(t, address(3), subs[1].Address)
		require.Len(t, dropped, 1)
		assert.Equal(t, 2, dropped[0].Row)
		assert.Equal(t, "missing address", dropped[0].Reason)
	})

	t.Run("it preserves input order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "Address\n" + address(5) + "\n" + address(2) + "\n" + address(9) + "\n"

		// Act
		subs, _, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		require.NoError(t, err)
		require.Len(t, subs, 3)
		assert.Equal(t, address(5), subs[0].Address)
		assert.Equal(t, address(2), subs[1].Address)
		assert.Equal(t, address(9), subs[2].Address)
	})

	t.Run("it fails when no address column is present", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "Contact,Project Name\none@example.org,tools\n"

		// Act
		_, _, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		var malformed *pipeline.MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 0, malformed.Row)
		assert.Equal(t, "address", malformed.Field)
	})

	t.Run("it degrades unparseable timestamps to zero time", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "Address,Timestamp\n" + address(1) + ",not a date\n"

		// Act
		subs, _, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.True(t, subs[0].SubmittedAt.IsZero())
	})

	t.Run("it trims whitespace around cell values", func(t *testing.T) {
		t.Parallel()

		// Arrange
		export := "Address,Contact\n  " + address(1) + " , dev@example.org \n"

		// Act
		subs, _, err := pipeline.NormalizeSubmissions(strings.NewReader(export))

		// Assert
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, address(1), subs[0].Address)
		assert.Equal(t, "dev@example.org", subs[0].Contact)
	})
}

// TestSubmissionIdentity tests the deduplication key derivation
func TestSubmissionIdentity(t *testing.T) {
	t.Parallel()

	t.Run("it derives the same identity for the same address", func(t *testing.T) {
		t.Parallel()

		first := pipeline.Submission{Address: address(1), Contact: "one@example.org"}
		second := pipeline.Submission{Address: address(1), Contact: "resubmitted@example.org"}

		assert.Equal(t, first.Identity(), second.Identity())
	})

	t.Run("it derives distinct identities for distinct addresses", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t, submission(1).Identity(), submission(2).Identity())
	})
}
