package reviews

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChallenge_AnswerForAllOperandPairs(t *testing.T) {
	for a := 1; a <= 10; a++ {
		for b := 1; b <= 10; b++ {
			assert.Equal(t, a+b, challengeOf(a, b, OpAdd).Answer())
			assert.Equal(t, a*b, challengeOf(a, b, OpMultiply).Answer())

			sub := challengeOf(a, b, OpSubtract)
			assert.GreaterOrEqual(t, sub.A, sub.B)
			assert.GreaterOrEqual(t, sub.Answer(), 0)
			if a >= b {
				assert.Equal(t, a-b, sub.Answer())
			} else {
				assert.Equal(t, b-a, sub.Answer())
			}
		}
	}
}

func TestNewChallenge_CoversEveryCombination(t *testing.T) {
	// Drive the generator through every possible draw.
	for a := 0; a < 10; a++ {
		for b := 0; b < 10; b++ {
			for op := range operators {
				draws := []int{a, b, op}
				intn := func(n int) int {
					v := draws[0]
					draws = draws[1:]
					return v
				}
				ch := NewChallenge(intn)

				assert.True(t, ch.A >= 1 && ch.A <= 10)
				assert.True(t, ch.B >= 1 && ch.B <= 10)
				assert.Equal(t, operators[op], ch.Op)
				assert.GreaterOrEqual(t, ch.Answer(), 0, ch.Question())
			}
		}
	}
}

func TestNewChallenge_Random(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		ch := NewChallenge(r.IntN)
		seen[ch.Op] = true
		assert.GreaterOrEqual(t, ch.Answer(), 0)
	}
	assert.Len(t, seen, 3)
}

func TestQuestion(t *testing.T) {
	assert.Equal(t, "7 × 3", Challenge{A: 7, B: 3, Op: OpMultiply}.Question())
	assert.Equal(t, "9 − 4", challengeOf(4, 9, OpSubtract).Question())
}

func TestVerify(t *testing.T) {
	ch := Challenge{A: 2, B: 3, Op: OpAdd}
	expected := strconv.Itoa(ch.Answer())

	assert.True(t, Verify("5", expected))
	assert.True(t, Verify("  5 \n", expected))
	assert.False(t, Verify("6", expected))
	assert.False(t, Verify("", expected))
	assert.False(t, Verify("5", ""))
	assert.False(t, Verify(fmt.Sprintf("%d.0", ch.Answer()), expected))
}
