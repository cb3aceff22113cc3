package exam

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidAnswer = errors.New("answer must be A, B, C or D")

// AttemptState is the session-scoped record of one in-progress exam attempt:
// built on start, mutated as answers accumulate, destroyed on submit. It is
// ephemeral; losing it mid-exam only restarts the timer, graded state lives
// in the results table.
type AttemptState struct {
	ExamID          int64             `json:"exam_id"`
	StartedAt       int64             `json:"started_at"` // unix seconds
	CurrentQuestion int               `json:"current_question"`
	Answers         map[string]string `json:"answers"` // question id -> letter
}

func NewAttemptState(examID int64, now time.Time) *AttemptState {
	return &AttemptState{
		ExamID:    examID,
		StartedAt: now.Unix(),
		Answers:   map[string]string{},
	}
}

// NormalizeLetter upper-cases and trims an answer, returning "" unless the
// result is one of the four option letters.
func NormalizeLetter(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "A", "B", "C", "D":
		return s
	}
	return ""
}

// SetAnswer merges one answer into the attempt. Answers may arrive in any
// order and overwrite earlier ones for the same question.
func (a *AttemptState) SetAnswer(questionID int64, answer string) error {
	letter := NormalizeLetter(answer)
	if letter == "" {
		return ErrInvalidAnswer
	}
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	a.Answers[strconv.FormatInt(questionID, 10)] = letter
	return nil
}

func (a *AttemptState) Elapsed(now time.Time) time.Duration {
	return now.Sub(time.Unix(a.StartedAt, 0))
}

// Remaining is the wall-clock time left for the given exam duration,
// clamped at zero.
func (a *AttemptState) Remaining(durationMin int, now time.Time) time.Duration {
	left := time.Duration(durationMin)*time.Minute - a.Elapsed(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether elapsed time has reached the exam duration. Expiry
// is checked lazily on each request; there is no background timer.
func (a *AttemptState) Expired(durationMin int, now time.Time) bool {
	return a.Remaining(durationMin, now) == 0
}
