package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/examportal/examportal/internal/auth"
	"github.com/examportal/examportal/internal/config"
	"github.com/examportal/examportal/internal/exam"
	"github.com/examportal/examportal/internal/rbac"
	"github.com/examportal/examportal/internal/users"
)

// Env bundles the dependencies every handler closure draws from.
type Env struct {
	Cfg      config.Config
	Sessions *auth.Sessions
	Remember *auth.RememberIssuer
	Users    *users.Store
	Exams    *exam.SQLStore
}

func dashboardPath(role rbac.Role) string {
	if role == rbac.RoleAdmin {
		return "/admin/dashboard"
	}
	return "/student/dashboard"
}

// GET / — landing; authenticated principals are sent to their dashboard.
func LandingHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := env.Sessions.Principal(r); ok {
			http.Redirect(w, r, dashboardPath(p.Role), http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Online Examination Portal",
			"flashes": env.Sessions.Flashes(w, r),
		})
	}
}

func LoginPageHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := env.Sessions.Principal(r); ok {
			http.Redirect(w, r, dashboardPath(p.Role), http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flashes": env.Sessions.Flashes(w, r)})
	}
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// POST /login
func LoginHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := env.Sessions.Principal(r); ok {
			http.Redirect(w, r, dashboardPath(p.Role), http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			env.Sessions.AddFlash(w, r, "danger", "Invalid form submission.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		form := loginForm{Email: formValue(r, "email"), Password: r.FormValue("password")}
		if err := validate.Struct(form); err != nil {
			env.Sessions.AddFlash(w, r, "danger", "Please provide both email and password.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		u, err := env.Users.Authenticate(r.Context(), form.Email, form.Password)
		if errors.Is(err, users.ErrInvalidCredentials) {
			env.Sessions.AddFlash(w, r, "danger", "Invalid email or password.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if err != nil {
			internalError(w, "login", err)
			return
		}

		if err := env.Sessions.SignIn(w, r, u.ID, u.Role); err != nil {
			internalError(w, "login: session", err)
			return
		}
		if formValue(r, "remember") != "" {
			if tok, err := env.Remember.Issue(u.ID, u.Role); err == nil {
				env.Remember.SetCookie(w, tok)
			} else {
				log.Printf("login: remember token: %v", err)
			}
		}
		env.Sessions.AddFlash(w, r, "success", "Welcome back, "+u.Email+"!")

		if next := r.URL.Query().Get("next"); next != "" && next[0] == '/' {
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, dashboardPath(u.Role), http.StatusSeeOther)
	}
}

func RegisterPageHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := env.Sessions.Principal(r); ok {
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flashes": env.Sessions.Flashes(w, r)})
	}
}

type registerForm struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	RollNumber      string `validate:"required"`
	Department      string
	Phone           string
}

// POST /register — creates the User and Student in one transaction.
func RegisterHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := env.Sessions.Principal(r); ok {
			http.Redirect(w, r, "/student/dashboard", http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			env.Sessions.AddFlash(w, r, "danger", "Invalid form submission.")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}
		form := registerForm{
			Name:            formValue(r, "name"),
			Email:           formValue(r, "email"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirm_password"),
			RollNumber:      formValue(r, "roll_number"),
			Department:      formValue(r, "department"),
			Phone:           formValue(r, "phone"),
		}
		if err := validate.Struct(form); err != nil {
			env.Sessions.AddFlash(w, r, "danger", formMessage(err))
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}

		_, err := env.Users.Register(r.Context(), users.RegisterInput{
			Name:       form.Name,
			Email:      form.Email,
			Password:   form.Password,
			RollNumber: form.RollNumber,
			Department: form.Department,
			Phone:      form.Phone,
		})
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			env.Sessions.AddFlash(w, r, "warning", "Email already registered. Please login.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		case errors.Is(err, users.ErrRollNumberTaken):
			env.Sessions.AddFlash(w, r, "danger", "Roll number already registered.")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		case err != nil:
			log.Printf("register: %v", err)
			env.Sessions.AddFlash(w, r, "danger", "Registration failed. Please try again.")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}

		env.Sessions.AddFlash(w, r, "success", "Registration successful! Please login.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// GET /logout
func LogoutHandler(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = env.Sessions.SignOut(w, r)
		auth.ClearRememberCookie(w)
		env.Sessions.AddFlash(w, r, "info", "You have been logged out successfully.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
