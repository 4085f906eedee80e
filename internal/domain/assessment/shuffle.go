package assessment

import (
	"encoding/binary"
	"math/rand/v2"

	"golang.org/x/crypto/blake2b"
)

// seededRand returns a PCG source keyed by the BLAKE2b-256 digest of the
// attempt id. The same id always yields the same sequence.
func seededRand(attemptID string) *rand.Rand {
	sum := blake2b.Sum256([]byte(attemptID))
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	))
}

// FreezeQuestions copies the quiz's question set in the order the attempt
// will see it. Question order is shuffled when shuffleQuestions is set and
// option order within choice questions when shuffleOptions is set. The
// ordering depends only on the attempt id.
func FreezeQuestions(attemptID string, questions []Question, shuffleQuestions, shuffleOptions bool) []Question {
	frozen := make([]Question, len(questions))
	for i, q := range questions {
		frozen[i] = cloneQuestion(q)
	}
	if !shuffleQuestions && !shuffleOptions {
		return frozen
	}

	r := seededRand(attemptID)
	if shuffleQuestions {
		shuffle(r, len(frozen), func(i, j int) { frozen[i], frozen[j] = frozen[j], frozen[i] })
	}
	if shuffleOptions {
		for i, q := range frozen {
			switch v := q.(type) {
			case SingleChoice:
				shuffleOpts(r, v.Options)
				frozen[i] = v
			case MultiChoice:
				shuffleOpts(r, v.Options)
				frozen[i] = v
			}
		}
	}
	return frozen
}

func shuffleOpts(r *rand.Rand, opts []Option) {
	shuffle(r, len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
}

// shuffle is a Fisher-Yates pass drawing from r. The permutation for a seed
// depends only on this loop and PCG output.
func shuffle(r *rand.Rand, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := int(r.Uint64() % uint64(i+1))
		swap(i, j)
	}
}

func cloneQuestion(q Question) Question {
	switch v := q.(type) {
	case SingleChoice:
		v.Options = append([]Option(nil), v.Options...)
		return v
	case MultiChoice:
		v.Options = append([]Option(nil), v.Options...)
		return v
	default:
		return q
	}
}
