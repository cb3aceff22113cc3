package exam

import "errors"

type Subject struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
}

type Exam struct {
	ID          int64  `json:"id"`
	SubjectID   int64  `json:"subject_id"`
	Title       string `json:"title"`
	DurationMin int    `json:"duration_min"`
	TotalMarks  int    `json:"total_marks"`
	PassMarks   int    `json:"pass_marks"`
	CreatedAt   int64  `json:"created_at"`

	// Filled by list queries.
	SubjectName   string `json:"subject_name,omitempty"`
	QuestionCount int    `json:"question_count,omitempty"`
}

type Question struct {
	ID            int64  `json:"id"`
	ExamID        int64  `json:"exam_id"`
	QuestionText  string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer,omitempty"` // stripped when served to students
	Marks         int    `json:"marks"`
	CreatedAt     int64  `json:"created_at"`
}

const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// Result is the immutable graded outcome of one attempt. The store exposes
// no update operation for it; rows are created once and only ever deleted
// by an administrator.
type Result struct {
	ID          int64   `json:"id"`
	StudentID   int64   `json:"student_id"`
	ExamID      int64   `json:"exam_id"`
	Score       int     `json:"score"`
	TotalMarks  int     `json:"total_marks"`
	Percentage  float64 `json:"percentage"`
	Status      string  `json:"status"`
	AttemptedAt int64   `json:"attempted_at"`

	// Filled by list queries.
	StudentName string `json:"student_name,omitempty"`
	ExamTitle   string `json:"exam_title,omitempty"`
}

var (
	ErrNotFound         = errors.New("not found")
	ErrCodeTaken        = errors.New("subject code already exists")
	ErrAlreadyAttempted = errors.New("exam already attempted")
	ErrNoQuestions      = errors.New("exam has no questions")
)
