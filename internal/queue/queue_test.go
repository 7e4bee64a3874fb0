package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeqIDDomain(t *testing.T) {
	valid := []string{"1", "999999", "000001", "42"}
	for _, in := range valid {
		_, err := ParseSeqID(in)
		assert.NoError(t, err, "input %q should be accepted", in)
	}

	invalid := []string{"0", "-1", "", "abc", "1000000", "000000"}
	for _, in := range invalid {
		_, err := ParseSeqID(in)
		assert.Error(t, err, "input %q should be rejected", in)
	}
}

func TestParseSeqIDPaddedFormsEquivalent(t *testing.T) {
	a, err := ParseSeqID("1")
	require.NoError(t, err)
	b, err := ParseSeqID("000001")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSeqIDFormatting(t *testing.T) {
	assert.Equal(t, "000001", SeqID(1).String())
	assert.Equal(t, "999999", SeqID(999999).String())
}

func TestBookmarkNames(t *testing.T) {
	assert.Equal(t, "jjq/queue/000042", QueueBookmark(SeqID(42)))
	assert.Equal(t, "jjq/failed/000042", FailedBookmark(SeqID(42)))
}

func TestTrailerRoundTrip(t *testing.T) {
	body := FormatFailureBody(SeqID(7), ReasonCheck, "abcd1234", "deadbeef", "cafef00d", "/tmp/jjq-run-000007", "rebase")

	trailers, missing := ParseTrailersStrict(body)
	assert.Empty(t, missing)
	assert.Equal(t, "abcd1234", trailers[TrailerCandidate])
	assert.Equal(t, "deadbeef", trailers[TrailerCandidateCommit])
	assert.Equal(t, "cafef00d", trailers[TrailerTrunk])
	assert.Equal(t, "/tmp/jjq-run-000007", trailers[TrailerWorkspace])
	assert.Equal(t, string(ReasonCheck), trailers[TrailerFailure])
	assert.Equal(t, "rebase", trailers[TrailerStrategy])
}

func TestParseTrailersStrictReportsMissing(t *testing.T) {
	_, missing := ParseTrailersStrict("just a message\n\njjq-candidate: abc\n")
	assert.ElementsMatch(t, []string{
		TrailerCandidateCommit, TrailerTrunk, TrailerWorkspace, TrailerFailure, TrailerStrategy,
	}, missing)
}

func TestParseTrailersToleratesAnyOrder(t *testing.T) {
	desc := "Failed: merge 000003 (conflicts)\n\n" +
		"jjq-strategy: merge\n" +
		"jjq-failure: conflicts\n" +
		"jjq-workspace: /tmp/x\n" +
		"jjq-trunk: t1\n" +
		"jjq-candidate-commit: c1\n" +
		"jjq-candidate: ch1\n"
	trailers := ParseTrailers(desc)
	assert.Len(t, trailers, 6)
	assert.Equal(t, "ch1", trailers[TrailerCandidate])
}
