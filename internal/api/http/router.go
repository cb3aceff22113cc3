package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/examportal/examportal/internal/auth"
	"github.com/examportal/examportal/internal/rbac"
)

// NewRouter wires every portal route behind the shared middleware chain.
// Admin and student surfaces live under their own subtrees so the role gate
// is applied once per subtree instead of per handler.
func NewRouter(env *Env) chi.Router {
	guard := &auth.Middleware{
		Sessions: env.Sessions,
		Remember: env.Remember,
		Checker:  rbac.NewChecker(nil),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   env.Cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public surface.
	r.Get("/", LandingHandler(env))
	r.Get("/login", LoginPageHandler(env))
	r.Post("/login", LoginHandler(env))
	r.Get("/register", RegisterPageHandler(env))
	r.Post("/register", RegisterHandler(env))
	r.Get("/logout", LogoutHandler(env))

	// Admin surface.
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(guard.RequireAuth)
		ar.Use(guard.RequireRole(rbac.RoleAdmin))

		ar.Get("/dashboard", AdminDashboardHandler(env))

		ar.Get("/subjects", ListSubjectsHandler(env))
		ar.Get("/subjects/add", AddSubjectFormHandler(env))
		ar.Post("/subjects/add", AddSubjectHandler(env))
		ar.Post("/subjects/delete/{id}", DeleteSubjectHandler(env))

		ar.Get("/exams", ListExamsHandler(env))
		ar.Get("/exams/add", AddExamFormHandler(env))
		ar.Post("/exams/add", AddExamHandler(env))
		ar.Post("/exams/delete/{id}", DeleteExamHandler(env))

		ar.Get("/exams/{examID}/questions", ListQuestionsHandler(env))
		ar.Get("/exams/{examID}/questions/add", AddQuestionFormHandler(env))
		ar.Post("/exams/{examID}/questions/add", AddQuestionHandler(env))
		ar.Post("/questions/delete/{id}", DeleteQuestionHandler(env))

		ar.Get("/students", ListStudentsHandler(env))
		ar.Post("/students/delete/{id}", DeleteStudentHandler(env))

		ar.Get("/results", ListResultsHandler(env))
		ar.Post("/results/delete/{id}", DeleteResultHandler(env))
	})

	// Student surface.
	r.Route("/student", func(sr chi.Router) {
		sr.Use(guard.RequireAuth)
		sr.Use(guard.RequireRole(rbac.RoleStudent))

		sr.Get("/dashboard", StudentDashboardHandler(env))

		sr.With(guard.RequirePermission("attempt:start")).
			Get("/exam/{examID}/start", StartExamHandler(env))
		sr.With(guard.RequirePermission("exam:view")).
			Get("/exam/{examID}/take", TakeExamHandler(env))
		sr.With(guard.RequirePermission("attempt:answer")).
			Post("/exam/{examID}/answer", SaveAnswerHandler(env))
		sr.With(guard.RequirePermission("attempt:submit")).
			Get("/exam/{examID}/submit", SubmitExamHandler(env))
		sr.With(guard.RequirePermission("attempt:submit")).
			Post("/exam/{examID}/submit", SubmitExamHandler(env))

		sr.With(guard.RequirePermission("result:view-own")).
			Get("/result/{resultID}", ViewResultHandler(env))
		sr.With(guard.RequirePermission("result:view-own")).
			Get("/history", HistoryHandler(env))
		sr.With(guard.RequirePermission("profile:view")).
			Get("/profile", ProfileHandler(env))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { notFound(w) })

	return r
}
