package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/examportal/examportal/internal/exam"
	"github.com/examportal/examportal/internal/users"
)

// GET /admin/dashboard — counts plus recent registrations and results.
func AdminDashboardHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := env.Exams.CountStats(r.Context())
		if err != nil {
			internalError(w, "admin dashboard: stats", err)
			return
		}
		totalStudents, err := env.Users.CountStudents(r.Context())
		if err != nil {
			internalError(w, "admin dashboard: students", err)
			return
		}
		recentStudents, err := env.Users.RecentStudents(r.Context(), 5)
		if err != nil {
			internalError(w, "admin dashboard: recent students", err)
			return
		}
		recentResults, err := env.Exams.RecentResults(r.Context(), 5)
		if err != nil {
			internalError(w, "admin dashboard: recent results", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total_students":  totalStudents,
			"total_subjects":  stats.Subjects,
			"total_exams":     stats.Exams,
			"total_results":   stats.Results,
			"recent_students": recentStudents,
			"recent_results":  recentResults,
			"flashes":         env.Sessions.Flashes(w, r),
		})
	}
}

/* ---------------- subjects ---------------- */

func ListSubjectsHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := env.Exams.ListSubjects(r.Context())
		if err != nil {
			internalError(w, "list subjects", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"subjects": subs,
			"flashes":  env.Sessions.Flashes(w, r),
		})
	}
}

func AddSubjectFormHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"flashes": env.Sessions.Flashes(w, r)})
	}
}

type subjectForm struct {
	Name string `validate:"required"`
	Code string `validate:"required"`
}

// POST /admin/subjects/add
func AddSubjectHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := subjectForm{Name: formValue(r, "name"), Code: formValue(r, "code")}
		if err := validate.Struct(form); err != nil {
			env.Sessions.AddFlash(w, r, "danger", "Subject name and code are required.")
			http.Redirect(w, r, "/admin/subjects/add", http.StatusSeeOther)
			return
		}
		_, err := env.Exams.CreateSubject(r.Context(), exam.Subject{
			Name:        form.Name,
			Code:        form.Code,
			Description: formValue(r, "description"),
		})
		if errors.Is(err, exam.ErrCodeTaken) {
			env.Sessions.AddFlash(w, r, "danger", "Subject code already exists.")
			http.Redirect(w, r, "/admin/subjects/add", http.StatusSeeOther)
			return
		}
		if err != nil {
			log.Printf("add subject: %v", err)
			env.Sessions.AddFlash(w, r, "danger", "Error adding subject.")
			http.Redirect(w, r, "/admin/subjects/add", http.StatusSeeOther)
			return
		}
		env.Sessions.AddFlash(w, r, "success", "Subject added successfully.")
		http.Redirect(w, r, "/admin/subjects", http.StatusSeeOther)
	}
}

// POST /admin/subjects/delete/{id} — cascades to exams, questions, results.
func DeleteSubjectHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			notFound(w)
			return
		}
		err := env.Exams.DeleteSubject(r.Context(), id)
		switch {
		case errors.Is(err, exam.ErrNotFound):
			notFound(w)
			return
		case err != nil:
			log.Printf("delete subject %d: %v", id, err)
			env.Sessions.AddFlash(w, r, "danger", "Error deleting subject.")
		default:
			env.Sessions.AddFlash(w, r, "success", "Subject deleted successfully.")
		}
		http.Redirect(w, r, "/admin/subjects", http.StatusSeeOther)
	}
}

/* ---------------- exams ---------------- */

func ListExamsHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exams, err := env.Exams.ListExams(r.Context())
		if err != nil {
			internalError(w, "list exams", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exams":   exams,
			"flashes": env.Sessions.Flashes(w, r),
		})
	}
}

// GET /admin/exams/add — the add form needs the subject list.
func AddExamFormHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := env.Exams.ListSubjects(r.Context())
		if err != nil {
			internalError(w, "exam form: subjects", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"subjects": subs,
			"flashes":  env.Sessions.Flashes(w, r),
		})
	}
}

type examForm struct {
	Title      string `validate:"required"`
	SubjectID  int    `validate:"gt=0"`
	Duration   int    `validate:"gt=0"`
	TotalMarks int    `validate:"gt=0"`
	PassMarks  int    `validate:"gt=0"`
}

// POST /admin/exams/add — on success, continue straight to the question
// list so the exam can be populated.
func AddExamHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := examForm{
			SubjectID:  formInt(r, "subject_id"),
			Title:      formValue(r, "title"),
			Duration:   formInt(r, "duration"),
			TotalMarks: formInt(r, "total_marks"),
			PassMarks:  formInt(r, "pass_marks"),
		}
		if err := validate.Struct(form); err != nil {
			env.Sessions.AddFlash(w, r, "danger", "All fields are required.")
			http.Redirect(w, r, "/admin/exams/add", http.StatusSeeOther)
			return
		}
		created, err := env.Exams.CreateExam(r.Context(), exam.Exam{
			SubjectID:   int64(form.SubjectID),
			Title:       form.Title,
			DurationMin: form.Duration,
			TotalMarks:  form.TotalMarks,
			PassMarks:   form.PassMarks,
		})
		if errors.Is(err, exam.ErrNotFound) {
			env.Sessions.AddFlash(w, r, "danger", "Subject not found.")
			http.Redirect(w, r, "/admin/exams/add", http.StatusSeeOther)
			return
		}
		if err != nil {
			log.Printf("add exam: %v", err)
			env.Sessions.AddFlash(w, r, "danger", "Error creating exam.")
			http.Redirect(w, r, "/admin/exams/add", http.StatusSeeOther)
			return
		}
		env.Sessions.AddFlash(w, r, "success", "Exam created successfully. Now add questions.")
		http.Redirect(w, r, "/admin/exams/"+strconv.FormatInt(created.ID, 10)+"/questions", http.StatusSeeOther)
	}
}

func DeleteExamHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			notFound(w)
			return
		}
		err := env.Exams.DeleteExam(r.Context(), id)
		switch {
		case errors.Is(err, exam.ErrNotFound):
			notFound(w)
			return
		case err != nil:
			log.Printf("delete exam %d: %v", id, err)
			env.Sessions.AddFlash(w, r, "danger", "Error deleting exam.")
		default:
			env.Sessions.AddFlash(w, r, "success", "Exam deleted successfully.")
		}
		http.Redirect(w, r, "/admin/exams", http.StatusSeeOther)
	}
}

/* ---------------- questions ---------------- */

func ListQuestionsHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
			internalError(w, "list questions: exam", err)
			return
		}
		qs, err := env.Exams.ListQuestions(r.Context(), examID)
		if err != nil {
			internalError(w, "list questions", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exam":      e,
			"questions": qs,
			"flashes":   env.Sessions.Flashes(w, r),
		})
	}
}

func AddQuestionFormHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
			internalError(w, "question form: exam", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exam":    e,
			"flashes": env.Sessions.Flashes(w, r),
		})
	}
}

type questionForm struct {
	QuestionText  string `validate:"required"`
	OptionA       string `validate:"required"`
	OptionB       string `validate:"required"`
	OptionC       string `validate:"required"`
	OptionD       string `validate:"required"`
	CorrectAnswer string `validate:"required,oneof=A B C D"`
}

// POST /admin/exams/{examID}/questions/add — "add_more" returns to the same
// add form instead of the question list.
func AddQuestionHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, ok := idParam(r, "examID")
		if !ok {
			notFound(w)
			return
		}
		examPath := "/admin/exams/" + strconv.FormatInt(examID, 10)
		if _, err := env.Exams.GetExam(r.Context(), examID); err != nil {
			if errors.Is(err, exam.ErrNotFound) {
				notFound(w)
				return
			}
			internalError(w, "add question: exam", err)
			return
		}

		form := questionForm{
			QuestionText:  formValue(r, "question_text"),
			OptionA:       formValue(r, "option_a"),
			OptionB:       formValue(r, "option_b"),
			OptionC:       formValue(r, "option_c"),
			OptionD:       formValue(r, "option_d"),
			CorrectAnswer: exam.NormalizeLetter(formValue(r, "correct_answer")),
		}
		if err := validate.Struct(form); err != nil {
			env.Sessions.AddFlash(w, r, "danger", formMessage(err))
			http.Redirect(w, r, examPath+"/questions/add", http.StatusSeeOther)
			return
		}

		marks := formInt(r, "marks")
		_, err := env.Exams.CreateQuestion(r.Context(), exam.Question{
			ExamID:        examID,
			QuestionText:  form.QuestionText,
			OptionA:       form.OptionA,
			OptionB:       form.OptionB,
			OptionC:       form.OptionC,
			OptionD:       form.OptionD,
			CorrectAnswer: form.CorrectAnswer,
			Marks:         marks,
		})
		if err != nil {
			log.Printf("add question: %v", err)
			env.Sessions.AddFlash(w, r, "danger", "Error adding question.")
			http.Redirect(w, r, examPath+"/questions/add", http.StatusSeeOther)
			return
		}
		env.Sessions.AddFlash(w, r, "success", "Question added successfully.")
		if formValue(r, "add_more") != "" {
			http.Redirect(w, r, examPath+"/questions/add", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, examPath+"/questions", http.StatusSeeOther)
	}
}

func DeleteQuestionHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			notFound(w)
			return
		}
		q, err := env.Exams.GetQuestion(r.Context(), id)
		if errors.Is(err, exam.ErrNotFound) {
			notFound(w)
			return
		}
		if err != nil {
			internalError(w, "delete question: load", err)
			return
		}
		examPath := "/admin/exams/" + strconv.FormatInt(q.ExamID, 10)
		if err := env.Exams.DeleteQuestion(r.Context(), id); err != nil {
			log.Printf("delete question %d: %v", id, err)
			env.Sessions.AddFlash(w, r, "danger", "Error deleting question.")
		} else {
			env.Sessions.AddFlash(w, r, "success", "Question deleted successfully.")
		}
		http.Redirect(w, r, examPath+"/questions", http.StatusSeeOther)
	}
}

/* ---------------- students ---------------- */

// GET /admin/students?search=&page= — keyword search, 10 per page.
func ListStudentsHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := pageParam(r)
		search := formValue(r, "search")
		perPage := env.Cfg.StudentsPerPage
		res, err := env.Users.ListStudents(r.Context(), users.ListOpts{
			Q:      search,
			Limit:  perPage,
			Offset: (page - 1) * perPage,
		})
		if err != nil {
			internalError(w, "list students", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"students": res.Students,
			"total":    res.Total,
			"page":     page,
			"per_page": perPage,
			"search":   search,
			"flashes":  env.Sessions.Flashes(w, r),
		})
	}
}

// POST /admin/students/delete/{id} — removes the student, its user, and all
// its results.
func DeleteStudentHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			notFound(w)
			return
		}
		err := env.Users.DeleteStudent(r.Context(), id)
		switch {
		case errors.Is(err, users.ErrNotFound):
			notFound(w)
			return
		case err != nil:
			log.Printf("delete student %d: %v", id, err)
			env.Sessions.AddFlash(w, r, "danger", "Error deleting student.")
		default:
			env.Sessions.AddFlash(w, r, "success", "Student deleted successfully.")
		}
		http.Redirect(w, r, "/admin/students", http.StatusSeeOther)
	}
}

/* ---------------- results ---------------- */

// GET /admin/results?page= — 20 per page, newest first.
func ListResultsHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := pageParam(r)
		perPage := env.Cfg.ResultsPerPage
		res, err := env.Exams.ListResults(r.Context(), perPage, (page-1)*perPage)
		if err != nil {
			internalError(w, "list results", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results":  res.Results,
			"total":    res.Total,
			"page":     page,
			"per_page": perPage,
			"flashes":  env.Sessions.Flashes(w, r),
		})
	}
}

func DeleteResultHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			notFound(w)
			return
		}
		err := env.Exams.DeleteResult(r.Context(), id)
		switch {
		case errors.Is(err, exam.ErrNotFound):
			notFound(w)
			return
		case err != nil:
			log.Printf("delete result %d: %v", id, err)
			env.Sessions.AddFlash(w, r, "danger", "Error deleting result.")
		default:
			env.Sessions.AddFlash(w, r, "success", "Result deleted successfully.")
		}
		http.Redirect(w, r, "/admin/results", http.StatusSeeOther)
	}
}

func pageParam(r *http.Request) int {
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		return p
	}
	return 1
}
