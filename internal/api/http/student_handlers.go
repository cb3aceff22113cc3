package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/examportal/examportal/internal/auth"
	"github.com/examportal/examportal/internal/exam"
	"github.com/examportal/examportal/internal/users"
)

// currentStudent resolves the student profile for the logged-in principal.
// A principal with no profile row gets bounced to the landing page.
func currentStudent(env *Env, w http.ResponseWriter, r *http.Request) (users.Student, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return users.Student{}, false
	}
	st, err := env.Users.GetStudentByUser(r.Context(), p.UserID)
	if errors.Is(err, users.ErrNotFound) {
		env.Sessions.AddFlash(w, r, "danger", "Student profile not found.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return users.Student{}, false
	}
	if err != nil {
		internalError(w, "load student profile", err)
		return users.Student{}, false
	}
	return st, true
}

func resultPath(id int64) string {
	return "/student/result/" + strconv.FormatInt(id, 10)
}

// GET /student/dashboard — exams the student can still take plus the five
// most recent results.
func StudentDashboardHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := currentStudent(env, w, r)
		if !ok {
			return
		}
		exams, err := env.Exams.AvailableExams(r.Context(), st.ID)
		if err != nil {
			internalError(w, "student dashboard: exams", err)
			return
		}
		recent, err := env.Exams.ResultsByStudent(r.Context(), st.ID, 5)
		if err != nil {
			internalError(w, "student dashboard: results", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"student":         st,
			"available_exams": exams,
			"recent_results":  recent,
			"flashes":         env.Sessions.Flashes(w, r),
		})
	}
}

// GET /student/exam/{examID}/start — establishes the attempt and starts the
// clock. Re-entering an already graded exam goes straight to its result.
func StartExamHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := currentStudent(env, w, r)
		if !ok {
			return
		}
		examID, ok := idParam(r, "examID")
		if !ok {
			notFound(w)
			return
		}
		e, err := env.Exams.GetExam(r.Context(), examID)
		if errors.Is(err, exam.ErrNotFound) {
			notFound(w)
			return
		}
		if err != nil {
			internalError(w, "start exam: load", err)
			return
		}

		if prev, err := env.Exams.ResultByStudentExam(r.Context(), st.ID, examID); err == nil {
			env.Sessions.AddFlash(w, r, "info", "You have already attempted this exam.")
			http.Redirect(w, r, resultPath(prev.ID), http.StatusSeeOther)
			return
		} else if !errors.Is(err, exam.ErrNotFound) {
			internalError(w, "start exam: prior result", err)
			return
		}

		if e.QuestionCount == 0 {
			env.Sessions.AddFlash(w, r, "warning", "This exam has no questions yet.")
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}

		// Re-opening the start URL mid-attempt must not reset the clock.
		if a, ok := env.Sessions.Attempt(r); ok && a.ExamID == examID {
			http.Redirect(w, r, "/student/exam/"+strconv.FormatInt(examID, 10)+"/take", http.StatusSeeOther)
			return
		}

		if err := env.Sessions.SaveAttempt(w, r, exam.NewAttemptState(examID, time.Now())); err != nil {
			internalError(w, "start exam: session", err)
			return
		}
		http.Redirect(w, r, "/student/exam/"+strconv.FormatInt(examID, 10)+"/take", http.StatusSeeOther)
	}
}

// GET /student/exam/{examID}/take — the live exam screen. ?q= moves the
// bookmark to another question. Expired attempts are force-submitted.
func TakeExamHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := currentStudent(env, w, r)
		if !ok {
			return
		}
		examID, ok := idParam(r, "examID")
		if !ok {
			notFound(w)
			return
		}

		a, ok := env.Sessions.Attempt(r)
		if !ok || a.ExamID != examID {
			env.Sessions.AddFlash(w, r, "danger", "Invalid exam session. Please start the exam again.")
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}

		if prev, err := env.Exams.ResultByStudentExam(r.Context(), st.ID, examID); err == nil {
			_ = env.Sessions.ClearAttempt(w, r)
			http.Redirect(w, r, resultPath(prev.ID), http.StatusSeeOther)
			return
		} else if !errors.Is(err, exam.ErrNotFound) {
			internalError(w, "take exam: prior result", err)
			return
		}

		e, err := env.Exams.GetExam(r.Context(), examID)
		if errors.Is(err, exam.ErrNotFound) {
			notFound(w)
			return
		}
		if err != nil {
			internalError(w, "take exam: load", err)
			return
		}

		if a.Expired(e.DurationMin, time.Now()) {
			http.Redirect(w, r, "/student/exam/"+strconv.FormatInt(examID, 10)+"/submit", http.StatusSeeOther)
			return
		}

		qs, err := env.Exams.StudentQuestions(r.Context(), examID)
		if err != nil {
			internalError(w, "take exam: questions", err)
			return
		}

		if qstr := r.URL.Query().Get("q"); qstr != "" {
			if idx, err := strconv.Atoi(qstr); err == nil && idx >= 0 && idx < len(qs) {
				a.CurrentQuestion = idx
				if err := env.Sessions.SaveAttempt(w, r, a); err != nil {
					internalError(w, "take exam: session", err)
					return
				}
			}
		}
		if a.CurrentQuestion >= len(qs) {
			a.CurrentQuestion = 0
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"exam":              e,
			"questions":         qs,
			"current_index":     a.CurrentQuestion,
			"answers":           a.Answers,
			"remaining_seconds": int(a.Remaining(e.DurationMin, time.Now()) / time.Second),
			"flashes":           env.Sessions.Flashes(w, r),
		})
	}
}

// POST /student/exam/{examID}/answer — records one answer in the session.
// Returns a JSON ack so the exam screen can save without navigating.
func SaveAnswerHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, ok := idParam(r, "examID")
		if !ok {
			writeJSON(w, http.StatusNotFound, ack{Success: false, Message: "exam not found"})
			return
		}
		a, ok := env.Sessions.Attempt(r)
		if !ok || a.ExamID != examID {
			writeJSON(w, http.StatusConflict, ack{Success: false, Message: "invalid exam session"})
			return
		}

		e, err := env.Exams.GetExam(r.Context(), examID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, ack{Success: false, Message: "exam not found"})
			return
		}
		// No writes past the deadline; the client is told to submit.
		if a.Expired(e.DurationMin, time.Now()) {
			writeJSON(w, http.StatusConflict, ack{Success: false, Message: "time is up"})
			return
		}

		qid, err := strconv.ParseInt(formValue(r, "question_id"), 10, 64)
		if err != nil || qid <= 0 {
			writeJSON(w, http.StatusBadRequest, ack{Success: false, Message: "invalid question"})
			return
		}
		if err := a.SetAnswer(qid, formValue(r, "answer")); err != nil {
			writeJSON(w, http.StatusBadRequest, ack{Success: false, Message: "answer must be A, B, C or D"})
			return
		}
		if err := env.Sessions.SaveAttempt(w, r, a); err != nil {
			writeJSON(w, http.StatusInternalServerError, ack{Success: false, Message: "could not save answer"})
			return
		}
		writeJSON(w, http.StatusOK, ack{Success: true})
	}
}

// SubmitExamHandler grades the attempt and persists the result. Reached by
// the submit button, by the client timer, or by any request arriving after
// the deadline. Attempt state survives a failed submit so it can be retried.
func SubmitExamHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := currentStudent(env, w, r)
		if !ok {
			return
		}
		examID, ok := idParam(r, "examID")
		if !ok {
			notFound(w)
			return
		}

		a, ok := env.Sessions.Attempt(r)
		if !ok || a.ExamID != examID {
			env.Sessions.AddFlash(w, r, "danger", "Invalid exam session. Please start the exam again.")
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}

		e, err := env.Exams.GetExam(r.Context(), examID)
		if errors.Is(err, exam.ErrNotFound) {
			notFound(w)
			return
		}
		if err != nil {
			internalError(w, "submit exam: load", err)
			return
		}
		qs, err := env.Exams.ListQuestions(r.Context(), examID)
		if err != nil {
			internalError(w, "submit exam: questions", err)
			return
		}

		out := exam.Grade(qs, a.Answers, e.PassMarks)
		res, err := env.Exams.CreateResult(r.Context(), exam.Result{
			StudentID:  st.ID,
			ExamID:     examID,
			Score:      out.Score,
			TotalMarks: out.TotalMarks,
			Percentage: out.Percentage,
			Status:     out.Status,
		})
		if errors.Is(err, exam.ErrAlreadyAttempted) {
			// Double submit; the first one won. The unique constraint on
			// (student, exam) is the final arbiter here, not the session.
			_ = env.Sessions.ClearAttempt(w, r)
			if prev, perr := env.Exams.ResultByStudentExam(r.Context(), st.ID, examID); perr == nil {
				http.Redirect(w, r, resultPath(prev.ID), http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}
		if err != nil {
			log.Printf("submit exam %d for student %d: %v", examID, st.ID, err)
			env.Sessions.AddFlash(w, r, "danger", "Could not submit the exam. Please try again.")
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}

		_ = env.Sessions.ClearAttempt(w, r)
		env.Sessions.AddFlash(w, r, "success", "Exam submitted successfully.")
		http.Redirect(w, r, resultPath(res.ID), http.StatusSeeOther)
	}
}

// GET /student/result/{resultID} — a student sees only their own results.
func ViewResultHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := currentStudent(env, w, r)
		if !ok {
			return
		}
		id, ok := idParam(r, "resultID")
		if !ok {
			notFound(w)
			return
		}
		res, err := env.Exams.GetResult(r.Context(), id)
		if errors.Is(err, exam.ErrNotFound) {
			notFound(w)
			return
		}
		if err != nil {
			internalError(w, "view result", err)
			return
		}
		if res.StudentID != st.ID {
			env.Sessions.AddFlash(w, r, "danger", "Access denied.")
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"result":  res,
			"flashes": env.Sessions.Flashes(w, r),
		})
	}
}

// GET /student/history — every result for the student, newest first.
func HistoryHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := currentStudent(env, w, r)
		if !ok {
			return
		}
		results, err := env.Exams.ResultsByStudent(r.Context(), st.ID, 0)
		if err != nil {
			internalError(w, "history", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": results,
			"flashes": env.Sessions.Flashes(w, r),
		})
	}
}

// GET /student/profile
func ProfileHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := currentStudent(env, w, r)
		if !ok {
			return
		}
		u, err := env.Users.GetUser(r.Context(), st.UserID)
		if err != nil {
			internalError(w, "profile: user", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"student": st,
			"email":   u.Email,
			"flashes": env.Sessions.Flashes(w, r),
		})
	}
}
