package exam

import "strconv"

// Outcome is the deterministic grade for one completed attempt.
type Outcome struct {
	Score      int     `json:"score"`
	TotalMarks int     `json:"total_marks"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"`
}

// Grade scores an answer map (question id -> letter) against the question
// bank. Every question contributes its marks to the total; a question scores
// only when the recorded answer matches the key, compared case-insensitively.
// Unanswered or malformed answers count as zero. Percentage is defined as 0
// for an empty bank.
func Grade(questions []Question, answers map[string]string, passMarks int) Outcome {
	var out Outcome
	for _, q := range questions {
		out.TotalMarks += q.Marks
		got := NormalizeLetter(answers[strconv.FormatInt(q.ID, 10)])
		if got != "" && got == NormalizeLetter(q.CorrectAnswer) {
			out.Score += q.Marks
		}
	}
	if out.TotalMarks > 0 {
		out.Percentage = float64(out.Score) / float64(out.TotalMarks) * 100
	}
	out.Status = StatusFail
	if out.Score >= passMarks {
		out.Status = StatusPass
	}
	return out
}
