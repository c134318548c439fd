package reviews

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
)

const captchaSessionKey = "review_captcha"

const (
	OpAdd      = "+"
	OpSubtract = "−"
	OpMultiply = "×"
)

var operators = []string{OpAdd, OpSubtract, OpMultiply}

// Challenge is a small arithmetic question shown next to the review form.
type Challenge struct {
	A  int
	B  int
	Op string
}

// NewChallenge picks operands in 1..10 and an operator. For subtraction the
// larger operand comes first so the answer is never negative.
func NewChallenge(intn func(int) int) Challenge {
	return challengeOf(intn(10)+1, intn(10)+1, operators[intn(len(operators))])
}

func challengeOf(a, b int, op string) Challenge {
	if op == OpSubtract && a < b {
		a, b = b, a
	}
	return Challenge{A: a, B: b, Op: op}
}

func (c Challenge) Answer() int {
	switch c.Op {
	case OpSubtract:
		return c.A - c.B
	case OpMultiply:
		return c.A * c.B
	default:
		return c.A + c.B
	}
}

func (c Challenge) Question() string {
	return fmt.Sprintf("%d %s %d", c.A, c.Op, c.B)
}

// Verify compares a submitted answer with the expected one, ignoring
// surrounding whitespace.
func Verify(input, expected string) bool {
	return expected != "" && strings.TrimSpace(input) == expected
}

// IssueChallenge generates a challenge and remembers its answer in the session.
func IssueChallenge(session sessions.Session) (Challenge, error) {
	ch := NewChallenge(rand.IntN)
	session.Set(captchaSessionKey, strconv.Itoa(ch.Answer()))
	if err := session.Save(); err != nil {
		return Challenge{}, fmt.Errorf("save challenge: %w", err)
	}
	return ch, nil
}

// CheckChallenge verifies input against the session's challenge. The
// challenge is consumed either way, so every attempt needs a fresh one.
func CheckChallenge(session sessions.Session, input string) (bool, error) {
	expected, _ := session.Get(captchaSessionKey).(string)
	session.Delete(captchaSessionKey)
	if err := session.Save(); err != nil {
		return false, fmt.Errorf("save session: %w", err)
	}
	return Verify(input, expected), nil
}
