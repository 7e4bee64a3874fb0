package queue

import (
	"regexp"
	"strings"
)

// FailureReason classifies why a candidate's run failed.
type FailureReason string

const (
	ReasonConflicts FailureReason = "conflicts"
	ReasonCheck     FailureReason = "check"
)

// Trailer keys written into a failed commit's description, per spec
// §6 "Failed-entry trailers".
const (
	TrailerCandidate       = "jjq-candidate"
	TrailerCandidateCommit = "jjq-candidate-commit"
	TrailerTrunk           = "jjq-trunk"
	TrailerWorkspace       = "jjq-workspace"
	TrailerFailure         = "jjq-failure"
	TrailerStrategy        = "jjq-strategy"

	// TrailerSequence marks a successfully landed commit's sequence
	// ID, alongside TrailerStrategy. Not part of the six required
	// failure trailers.
	TrailerSequence = "jjq-sequence"
)

// requiredTrailers are the six keys a strict parse must find.
var requiredTrailers = []string{
	TrailerCandidate, TrailerCandidateCommit, TrailerTrunk,
	TrailerWorkspace, TrailerFailure, TrailerStrategy,
}

var trailerLineRe = regexp.MustCompile(`^(jjq-[a-z-]+):\s*(.*)$`)

// ParseTrailers collects every "jjq-<key>: <value>" line from a
// commit description into a map, in any order, any number of times
// (last occurrence of a duplicate key wins).
func ParseTrailers(description string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(description, "\n") {
		m := trailerLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		out[m[1]] = m[2]
	}
	return out
}

// ParseTrailersStrict parses description and additionally requires
// that all six documented trailer keys are present, returning the
// names of any that are missing.
func ParseTrailersStrict(description string) (map[string]string, []string) {
	trailers := ParseTrailers(description)
	var missing []string
	for _, key := range requiredTrailers {
		if _, ok := trailers[key]; !ok {
			missing = append(missing, key)
		}
	}
	return trailers, missing
}

// FormatFailureBody renders the literal trailer block appended to a
// failed commit's description, per spec §6.
func FormatFailureBody(id SeqID, reason FailureReason, candidateChange, candidateCommit, trunkCommit, workspacePath string, strategy string) string {
	var b strings.Builder
	b.WriteString("Failed: merge ")
	b.WriteString(id.String())
	b.WriteString(" (")
	b.WriteString(string(reason))
	b.WriteString(")\n\n")
	b.WriteString(TrailerCandidate + ": " + candidateChange + "\n")
	b.WriteString(TrailerCandidateCommit + ": " + candidateCommit + "\n")
	b.WriteString(TrailerTrunk + ": " + trunkCommit + "\n")
	b.WriteString(TrailerWorkspace + ": " + workspacePath + "\n")
	b.WriteString(TrailerFailure + ": " + string(reason) + "\n")
	b.WriteString(TrailerStrategy + ": " + strategy + "\n")
	return b.String()
}
