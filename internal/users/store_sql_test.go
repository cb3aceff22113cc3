package users_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/examportal/examportal/internal/db"
	"github.com/examportal/examportal/internal/rbac"
	"github.com/examportal/examportal/internal/users"
)

var dbSeq int

func newTestStore(t *testing.T) (*users.Store, *sql.DB) {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:userstore%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { dbh.Close() })
	return users.NewStore(dbh), dbh
}

func register(t *testing.T, store *users.Store, email, roll string) users.Student {
	t.Helper()
	st, err := store.Register(context.Background(), users.RegisterInput{
		Name:       "Alice",
		Email:      email,
		Password:   "secret123",
		RollNumber: roll,
		Department: "CS",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return st
}

func TestRegisterAndAuthenticate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	st := register(t, store, "alice@example.com", "CS-001")

	u, err := store.Authenticate(ctx, "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Role != rbac.RoleStudent {
		t.Fatalf("role = %q, want student", u.Role)
	}
	if u.ID != st.UserID {
		t.Fatalf("user id = %d, want %d", u.ID, st.UserID)
	}

	if _, err := store.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, users.ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	// An unknown email yields the same error as a wrong password.
	if _, err := store.Authenticate(ctx, "nobody@example.com", "secret123"); !errors.Is(err, users.ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store, dbh := newTestStore(t)
	ctx := context.Background()
	register(t, store, "dup@example.com", "R-1")

	_, err := store.Register(ctx, users.RegisterInput{
		Name: "Bob", Email: "dup@example.com", Password: "secret123", RollNumber: "R-2",
	})
	if !errors.Is(err, users.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}

	// The failed registration must not leave a partial user behind.
	var n int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 1 {
		t.Fatalf("users = %d, want 1", n)
	}
}

func TestRegisterDuplicateRollNumber(t *testing.T) {
	store, _ := newTestStore(t)
	register(t, store, "one@example.com", "R-1")

	_, err := store.Register(context.Background(), users.RegisterInput{
		Name: "Bob", Email: "two@example.com", Password: "secret123", RollNumber: "R-1",
	})
	if !errors.Is(err, users.ErrRollNumberTaken) {
		t.Fatalf("err = %v, want ErrRollNumberTaken", err)
	}
}

func TestListStudentsSearch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	register(t, store, "alice@example.com", "CS-001")

	st, err := store.Register(ctx, users.RegisterInput{
		Name: "Bob", Email: "bob@example.com", Password: "secret123",
		RollNumber: "EE-002", Department: "EE",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	page, err := store.ListStudents(ctx, users.ListOpts{Q: "ee", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Students) != 1 || page.Students[0].ID != st.ID {
		t.Fatalf("search 'ee' = %+v, want only Bob", page)
	}

	page, err = store.ListStudents(ctx, users.ListOpts{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Students) != 1 {
		t.Fatalf("paged list total/len = %d/%d, want 2/1", page.Total, len(page.Students))
	}
}

func TestDeleteStudentRemovesUser(t *testing.T) {
	store, dbh := newTestStore(t)
	ctx := context.Background()
	st := register(t, store, "gone@example.com", "R-9")

	if err := store.DeleteStudent(ctx, st.ID); err != nil {
		t.Fatalf("delete student: %v", err)
	}
	if _, err := store.GetStudent(ctx, st.ID); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("student err = %v, want ErrNotFound", err)
	}
	var n int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM users WHERE id=$1`, st.UserID).Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 0 {
		t.Fatalf("login account survived the delete")
	}

	if err := store.DeleteStudent(ctx, st.ID); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.EnsureDefaultAdmin(ctx, "admin@exam.com", "admin123")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !created {
		t.Fatal("first run should create the admin")
	}

	created, err = store.EnsureDefaultAdmin(ctx, "admin@exam.com", "admin123")
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if created {
		t.Fatal("second run must be a no-op")
	}

	u, err := store.Authenticate(ctx, "admin@exam.com", "admin123")
	if err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	if u.Role != rbac.RoleAdmin {
		t.Fatalf("role = %q, want admin", u.Role)
	}
}
