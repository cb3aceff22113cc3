package exam

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/examportal/examportal/internal/db"
)

// SQLStore persists the exam catalogue and graded results. It works against
// sqlite and postgres; both schemas enforce the cascades and the
// (student_id, exam_id) uniqueness the attempt flow relies on.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(dbh *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: dbh, driver: driver}
}

/* ---------------- subjects ---------------- */

func (s *SQLStore) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	sub.CreatedAt = time.Now().Unix()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subjects (name, code, description, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		sub.Name, sub.Code, sub.Description, sub.CreatedAt).Scan(&sub.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Subject{}, ErrCodeTaken
		}
		return Subject{}, err
	}
	return sub, nil
}

func (s *SQLStore) GetSubject(ctx context.Context, id int64) (Subject, error) {
	var sub Subject
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, description, created_at FROM subjects WHERE id=$1`, id).
		Scan(&sub.ID, &sub.Name, &sub.Code, &sub.Description, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, ErrNotFound
	}
	if err != nil {
		return Subject{}, err
	}
	return sub, nil
}

func (s *SQLStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, code, description, created_at FROM subjects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Subject{}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Code, &sub.Description, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// DeleteSubject removes the subject; its exams, their questions and results
// follow via ON DELETE CASCADE.
func (s *SQLStore) DeleteSubject(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, `DELETE FROM subjects WHERE id=$1`, id)
}

/* ---------------- exams ---------------- */

func (s *SQLStore) CreateExam(ctx context.Context, e Exam) (Exam, error) {
	if _, err := s.GetSubject(ctx, e.SubjectID); err != nil {
		return Exam{}, err
	}
	e.CreatedAt = time.Now().Unix()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO exams (subject_id, title, duration_min, total_marks, pass_marks, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		e.SubjectID, e.Title, e.DurationMin, e.TotalMarks, e.PassMarks, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *SQLStore) GetExam(ctx context.Context, id int64) (Exam, error) {
	var e Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT e.id, e.subject_id, e.title, e.duration_min, e.total_marks, e.pass_marks, e.created_at,
		        s.name,
		        (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id)
		 FROM exams e JOIN subjects s ON s.id = e.subject_id
		 WHERE e.id=$1`, id).
		Scan(&e.ID, &e.SubjectID, &e.Title, &e.DurationMin, &e.TotalMarks, &e.PassMarks, &e.CreatedAt,
			&e.SubjectName, &e.QuestionCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	if err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *SQLStore) ListExams(ctx context.Context) ([]Exam, error) {
	return s.queryExams(ctx,
		`SELECT e.id, e.subject_id, e.title, e.duration_min, e.total_marks, e.pass_marks, e.created_at,
		        s.name,
		        (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id)
		 FROM exams e JOIN subjects s ON s.id = e.subject_id
		 ORDER BY e.created_at DESC, e.id DESC`)
}

// AvailableExams lists exams the student has not yet attempted.
func (s *SQLStore) AvailableExams(ctx context.Context, studentID int64) ([]Exam, error) {
	return s.queryExams(ctx,
		`SELECT e.id, e.subject_id, e.title, e.duration_min, e.total_marks, e.pass_marks, e.created_at,
		        s.name,
		        (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id)
		 FROM exams e JOIN subjects s ON s.id = e.subject_id
		 WHERE NOT EXISTS (SELECT 1 FROM results r WHERE r.exam_id = e.id AND r.student_id = $1)
		 ORDER BY e.created_at DESC, e.id DESC`, studentID)
}

func (s *SQLStore) queryExams(ctx context.Context, query string, args ...any) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Exam{}
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Title, &e.DurationMin, &e.TotalMarks, &e.PassMarks,
			&e.CreatedAt, &e.SubjectName, &e.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteExam(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, `DELETE FROM exams WHERE id=$1`, id)
}

/* ---------------- questions ---------------- */

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	letter := NormalizeLetter(q.CorrectAnswer)
	if letter == "" {
		return Question{}, ErrInvalidAnswer
	}
	if q.Marks <= 0 {
		q.Marks = 1
	}
	q.CorrectAnswer = letter
	q.CreatedAt = time.Now().Unix()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO questions (exam_id, question_text, option_a, option_b, option_c, option_d, correct_answer, marks, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		q.ExamID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Marks, q.CreatedAt).
		Scan(&q.ID)
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (Question, error) {
	var q Question
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_answer, marks, created_at
		 FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectAnswer, &q.Marks, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

// ListQuestions returns the full bank including answer keys; admin and
// grading use only.
func (s *SQLStore) ListQuestions(ctx context.Context, examID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_answer, marks, created_at
		 FROM questions WHERE exam_id=$1 ORDER BY id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectAnswer, &q.Marks, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// StudentQuestions strips answer keys before serving an in-progress attempt.
func (s *SQLStore) StudentQuestions(ctx context.Context, examID int64) ([]Question, error) {
	qs, err := s.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].CorrectAnswer = ""
	}
	return qs, nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, `DELETE FROM questions WHERE id=$1`, id)
}

/* ---------------- results ---------------- */

// CreateResult writes the one immutable Result row for a graded attempt.
// Two near-simultaneous submits race to this insert; the unique
// (student_id, exam_id) constraint makes the second one lose, reported as
// ErrAlreadyAttempted.
func (s *SQLStore) CreateResult(ctx context.Context, r Result) (Result, error) {
	r.AttemptedAt = time.Now().Unix()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO results (student_id, exam_id, score, total_marks, percentage, status, attempted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		r.StudentID, r.ExamID, r.Score, r.TotalMarks, r.Percentage, r.Status, r.AttemptedAt).Scan(&r.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Result{}, ErrAlreadyAttempted
		}
		return Result{}, err
	}
	return r, nil
}

func (s *SQLStore) GetResult(ctx context.Context, id int64) (Result, error) {
	var r Result
	err := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.student_id, r.exam_id, r.score, r.total_marks, r.percentage, r.status, r.attempted_at,
		        st.name, e.title
		 FROM results r
		 JOIN students st ON st.id = r.student_id
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.id=$1`, id).
		Scan(&r.ID, &r.StudentID, &r.ExamID, &r.Score, &r.TotalMarks, &r.Percentage, &r.Status, &r.AttemptedAt,
			&r.StudentName, &r.ExamTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}
	return r, nil
}

// ResultByStudentExam backs the attempt idempotency guard.
func (s *SQLStore) ResultByStudentExam(ctx context.Context, studentID, examID int64) (Result, error) {
	var r Result
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, exam_id, score, total_marks, percentage, status, attempted_at
		 FROM results WHERE student_id=$1 AND exam_id=$2`, studentID, examID).
		Scan(&r.ID, &r.StudentID, &r.ExamID, &r.Score, &r.TotalMarks, &r.Percentage, &r.Status, &r.AttemptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}
	return r, nil
}

type ResultPage struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
}

func (s *SQLStore) ListResults(ctx context.Context, limit, offset int) (ResultPage, error) {
	if limit <= 0 {
		limit = 20
	}
	page := ResultPage{Results: []Result{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&page.Total); err != nil {
		return ResultPage{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.student_id, r.exam_id, r.score, r.total_marks, r.percentage, r.status, r.attempted_at,
		        st.name, e.title
		 FROM results r
		 JOIN students st ON st.id = r.student_id
		 JOIN exams e ON e.id = r.exam_id
		 ORDER BY r.attempted_at DESC, r.id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return ResultPage{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.StudentID, &r.ExamID, &r.Score, &r.TotalMarks, &r.Percentage, &r.Status,
			&r.AttemptedAt, &r.StudentName, &r.ExamTitle); err != nil {
			return ResultPage{}, err
		}
		page.Results = append(page.Results, r)
	}
	return page, rows.Err()
}

// ResultsByStudent lists a student's history, most recent first. A zero
// limit means all.
func (s *SQLStore) ResultsByStudent(ctx context.Context, studentID int64, limit int) ([]Result, error) {
	query := `SELECT r.id, r.student_id, r.exam_id, r.score, r.total_marks, r.percentage, r.status, r.attempted_at,
		        st.name, e.title
		 FROM results r
		 JOIN students st ON st.id = r.student_id
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.student_id=$1
		 ORDER BY r.attempted_at DESC, r.id DESC`
	args := []any{studentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.StudentID, &r.ExamID, &r.Score, &r.TotalMarks, &r.Percentage, &r.Status,
			&r.AttemptedAt, &r.StudentName, &r.ExamTitle); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) RecentResults(ctx context.Context, limit int) ([]Result, error) {
	page, err := s.ListResults(ctx, limit, 0)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (s *SQLStore) DeleteResult(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, `DELETE FROM results WHERE id=$1`, id)
}

/* ---------------- counts & helpers ---------------- */

type Stats struct {
	Subjects int `json:"subjects"`
	Exams    int `json:"exams"`
	Results  int `json:"results"`
}

func (s *SQLStore) CountStats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, c := range []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM subjects`, &st.Subjects},
		{`SELECT COUNT(*) FROM exams`, &st.Exams},
		{`SELECT COUNT(*) FROM results`, &st.Results},
	} {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

func (s *SQLStore) deleteRow(ctx context.Context, query string, id int64) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
