package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	api "github.com/examportal/examportal/internal/api/http"
	"github.com/examportal/examportal/internal/auth"
	"github.com/examportal/examportal/internal/config"
	"github.com/examportal/examportal/internal/db"
	"github.com/examportal/examportal/internal/exam"
	"github.com/examportal/examportal/internal/users"
)

var dbSeq int

func newTestEnv(t *testing.T) *api.Env {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:portal%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { dbh.Close() })

	cfg := config.FromEnv()
	userStore := users.NewStore(dbh)
	if _, err := userStore.EnsureDefaultAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		t.Fatalf("default admin: %v", err)
	}
	return &api.Env{
		Cfg:      cfg,
		Sessions: auth.NewSessions("test-session-secret", time.Hour),
		Remember: auth.NewRememberIssuer("test-remember-secret", time.Hour),
		Users:    userStore,
		Exams:    exam.NewSQLStore(dbh, "sqlite"),
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *api.Env) {
	t.Helper()
	env := newTestEnv(t)
	srv := httptest.NewServer(api.NewRouter(env))
	t.Cleanup(srv.Close)
	return srv, env
}

// newClient returns a redirect-following client with its own cookie jar,
// standing in for one browser session.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func postForm(t *testing.T, c *http.Client, rawURL string, form url.Values) map[string]any {
	t.Helper()
	resp, err := c.PostForm(rawURL, form)
	if err != nil {
		t.Fatalf("POST %s: %v", rawURL, err)
	}
	return decodeBody(t, resp)
}

func getJSON(t *testing.T, c *http.Client, rawURL string) map[string]any {
	t.Helper()
	resp, err := c.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	return decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return out
}

func flashMessages(body map[string]any) []string {
	raw, _ := body["flashes"].([]any)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(map[string]any); ok {
			if msg, ok := m["message"].(string); ok {
				out = append(out, msg)
			}
		}
	}
	return out
}

func login(t *testing.T, c *http.Client, base, email, password string) map[string]any {
	t.Helper()
	return postForm(t, c, base+"/login", url.Values{
		"email":    {email},
		"password": {password},
	})
}

func seedExamWithQuestions(t *testing.T, env *api.Env, correct ...string) exam.Exam {
	t.Helper()
	ctx := context.Background()
	sub, err := env.Exams.CreateSubject(ctx, exam.Subject{Name: "Math", Code: "MATH"})
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	e, err := env.Exams.CreateExam(ctx, exam.Exam{
		SubjectID: sub.ID, Title: "Quiz", DurationMin: 30,
		TotalMarks: len(correct), PassMarks: 1,
	})
	if err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	for i, ans := range correct {
		if _, err := env.Exams.CreateQuestion(ctx, exam.Question{
			ExamID: e.ID, QuestionText: fmt.Sprintf("q%d", i+1),
			OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
			CorrectAnswer: ans,
		}); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
	return e
}

func registerAndLogin(t *testing.T, c *http.Client, base string) {
	t.Helper()
	postForm(t, c, base+"/register", url.Values{
		"name":             {"Alice"},
		"email":            {"alice@example.com"},
		"password":         {"secret123"},
		"confirm_password": {"secret123"},
		"roll_number":      {"CS-001"},
	})
	body := login(t, c, base, "alice@example.com", "secret123")
	if got := flashMessages(body); len(got) == 0 || !strings.HasPrefix(got[len(got)-1], "Welcome back") {
		t.Fatalf("login flashes = %v, want a welcome message", got)
	}
}

func TestAdminContentFlow(t *testing.T) {
	srv, env := newTestServer(t)
	c := newClient(t)
	login(t, c, srv.URL, env.Cfg.AdminEmail, env.Cfg.AdminPassword)

	postForm(t, c, srv.URL+"/admin/subjects/add", url.Values{
		"name": {"Math"}, "code": {"MATH"},
	})
	body := getJSON(t, c, srv.URL+"/admin/subjects")
	subs, _ := body["subjects"].([]any)
	if len(subs) != 1 {
		t.Fatalf("subjects = %v, want 1", body["subjects"])
	}
	subID := int64(subs[0].(map[string]any)["id"].(float64))

	// Creating an exam lands on its (empty) question list.
	body = postForm(t, c, srv.URL+"/admin/exams/add", url.Values{
		"subject_id":  {strconv.FormatInt(subID, 10)},
		"title":       {"Quiz"},
		"duration":    {"30"},
		"total_marks": {"2"},
		"pass_marks":  {"1"},
	})
	examBody, ok := body["exam"].(map[string]any)
	if !ok {
		t.Fatalf("exam create response = %v, want the question list", body)
	}
	examID := int64(examBody["id"].(float64))

	qURL := srv.URL + "/admin/exams/" + strconv.FormatInt(examID, 10) + "/questions"
	postForm(t, c, qURL+"/add", url.Values{
		"question_text": {"2+2?"},
		"option_a":      {"3"}, "option_b": {"4"}, "option_c": {"5"}, "option_d": {"6"},
		"correct_answer": {"B"},
	})
	body = getJSON(t, c, qURL)
	qs, _ := body["questions"].([]any)
	if len(qs) != 1 {
		t.Fatalf("questions = %v, want 1", body["questions"])
	}

	body = getJSON(t, c, srv.URL+"/admin/dashboard")
	if body["total_exams"].(float64) != 1 || body["total_subjects"].(float64) != 1 {
		t.Fatalf("dashboard = %v, want 1 exam and 1 subject", body)
	}
}

func TestStudentAttemptFlow(t *testing.T) {
	srv, env := newTestServer(t)
	e := seedExamWithQuestions(t, env, "A", "B")

	c := newClient(t)
	registerAndLogin(t, c, srv.URL)

	body := getJSON(t, c, srv.URL+"/student/dashboard")
	if avail, _ := body["available_exams"].([]any); len(avail) != 1 {
		t.Fatalf("available exams = %v, want 1", body["available_exams"])
	}

	examURL := srv.URL + "/student/exam/" + strconv.FormatInt(e.ID, 10)
	body = getJSON(t, c, examURL+"/start")
	qs, _ := body["questions"].([]any)
	if len(qs) != 2 {
		t.Fatalf("take screen questions = %v, want 2", body["questions"])
	}
	for _, q := range qs {
		if _, leaked := q.(map[string]any)["correct_answer"]; leaked {
			t.Fatalf("answer key leaked to the exam screen: %v", q)
		}
	}

	q1 := int64(qs[0].(map[string]any)["id"].(float64))
	q2 := int64(qs[1].(map[string]any)["id"].(float64))
	for qid, ans := range map[int64]string{q1: "A", q2: "C"} {
		body = postForm(t, c, examURL+"/answer", url.Values{
			"question_id": {strconv.FormatInt(qid, 10)},
			"answer":      {ans},
		})
		if body["success"] != true {
			t.Fatalf("answer ack = %v, want success", body)
		}
	}

	body = getJSON(t, c, examURL+"/submit")
	res, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("submit response = %v, want a result", body)
	}
	if res["score"].(float64) != 1 || res["status"] != "pass" {
		t.Fatalf("result = %v, want score 1, status pass", res)
	}

	// Attempted exams leave the dashboard.
	body = getJSON(t, c, srv.URL+"/student/dashboard")
	if avail, _ := body["available_exams"].([]any); len(avail) != 0 {
		t.Fatalf("available exams after attempt = %v, want none", body["available_exams"])
	}

	// Re-starting a graded exam goes to the existing result.
	body = getJSON(t, c, examURL+"/start")
	if _, ok := body["result"].(map[string]any); !ok {
		t.Fatalf("restart response = %v, want the prior result", body)
	}

	body = getJSON(t, c, srv.URL+"/student/history")
	if results, _ := body["results"].([]any); len(results) != 1 {
		t.Fatalf("history = %v, want 1 result", body["results"])
	}
}

func TestAnswerWithoutAttemptRejected(t *testing.T) {
	srv, env := newTestServer(t)
	e := seedExamWithQuestions(t, env, "A")

	c := newClient(t)
	registerAndLogin(t, c, srv.URL)

	resp, err := c.PostForm(srv.URL+"/student/exam/"+strconv.FormatInt(e.ID, 10)+"/answer", url.Values{
		"question_id": {"1"}, "answer": {"A"},
	})
	if err != nil {
		t.Fatalf("post answer: %v", err)
	}
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusConflict || body["success"] != false {
		t.Fatalf("status/body = %d/%v, want 409 and failure", resp.StatusCode, body)
	}
}

func TestRoleGates(t *testing.T) {
	srv, _ := newTestServer(t)

	c := newClient(t)
	registerAndLogin(t, c, srv.URL)

	// A student hitting the admin surface bounces to the landing page.
	noRedirect := &http.Client{
		Jar: c.Jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Get(srv.URL + "/admin/dashboard")
	if err != nil {
		t.Fatalf("get admin dashboard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("status/location = %d/%q, want 303 to /", resp.StatusCode, resp.Header.Get("Location"))
	}

	// Anonymous requests bounce to the login page.
	anon := &http.Client{CheckRedirect: noRedirect.CheckRedirect}
	resp, err = anon.Get(srv.URL + "/student/dashboard")
	if err != nil {
		t.Fatalf("get student dashboard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("status/location = %d/%q, want 303 to /login", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestExpiredAttemptForceSubmitted(t *testing.T) {
	srv, env := newTestServer(t)

	// Zero duration expires the attempt the moment it starts.
	sub, err := env.Exams.CreateSubject(context.Background(), exam.Subject{Name: "Hist", Code: "HIST"})
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	e, err := env.Exams.CreateExam(context.Background(), exam.Exam{
		SubjectID: sub.ID, Title: "Flash Quiz", DurationMin: 0, TotalMarks: 1, PassMarks: 1,
	})
	if err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	if _, err := env.Exams.CreateQuestion(context.Background(), exam.Question{
		ExamID: e.ID, QuestionText: "q",
		OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
		CorrectAnswer: "A",
	}); err != nil {
		t.Fatalf("seed question: %v", err)
	}

	c := newClient(t)
	registerAndLogin(t, c, srv.URL)

	// start redirects to take, which sees the expired clock and submits.
	body := getJSON(t, c, srv.URL+"/student/exam/"+strconv.FormatInt(e.ID, 10)+"/start")
	res, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("expired take response = %v, want a graded result", body)
	}
	if res["score"].(float64) != 0 || res["status"] != "fail" {
		t.Fatalf("result = %v, want score 0, status fail", res)
	}

	// Exactly one result exists and the attempt is gone: answering now fails.
	resp, err := c.PostForm(srv.URL+"/student/exam/"+strconv.FormatInt(e.ID, 10)+"/answer", url.Values{
		"question_id": {"1"}, "answer": {"A"},
	})
	if err != nil {
		t.Fatalf("post answer: %v", err)
	}
	ackBody := decodeBody(t, resp)
	if resp.StatusCode != http.StatusConflict || ackBody["success"] != false {
		t.Fatalf("post-expiry answer = %d/%v, want 409 failure", resp.StatusCode, ackBody)
	}
}

func TestRememberTokenRestoresSession(t *testing.T) {
	srv, env := newTestServer(t)
	seedExamWithQuestions(t, env, "A")

	c := newClient(t)
	postForm(t, c, srv.URL+"/register", url.Values{
		"name":             {"Bob"},
		"email":            {"bob@example.com"},
		"password":         {"secret123"},
		"confirm_password": {"secret123"},
		"roll_number":      {"CS-002"},
	})
	postForm(t, c, srv.URL+"/login", url.Values{
		"email":    {"bob@example.com"},
		"password": {"secret123"},
		"remember": {"on"},
	})

	// Drop the session cookie, keep the remember token.
	u, _ := url.Parse(srv.URL)
	var remember *http.Cookie
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == auth.RememberCookie {
			remember = ck
		}
	}
	if remember == nil {
		t.Fatal("remember cookie not set")
	}

	fresh := newClient(t)
	fresh.Jar.SetCookies(u, []*http.Cookie{remember})
	body := getJSON(t, fresh, srv.URL+"/student/dashboard")
	if _, ok := body["student"].(map[string]any); !ok {
		t.Fatalf("dashboard via remember token = %v, want the student profile", body)
	}
}
