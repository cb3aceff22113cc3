package users

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/examportal/examportal/internal/db"
	"github.com/examportal/examportal/internal/rbac"
)

const bcryptCost = 12

type Store struct {
	db *sql.DB
}

func NewStore(dbh *sql.DB) *Store { return &Store{db: dbh} }

type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	RollNumber string
	Department string
	Phone      string
}

// Register creates the User and its Student row in one transaction. A failed
// student insert rolls back the user insert; there is never a half-registered
// account. Uniqueness pre-checks give friendly errors, the DB constraints
// remain the final arbiter.
func (s *Store) Register(ctx context.Context, in RegisterInput) (st Student, err error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return Student{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Student{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email=$1`, in.Email).Scan(&exists)
	if err == nil {
		err = ErrEmailTaken
		return Student{}, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Student{}, err
	}
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM students WHERE roll_number=$1`, in.RollNumber).Scan(&exists)
	if err == nil {
		err = ErrRollNumberTaken
		return Student{}, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Student{}, err
	}
	err = nil

	now := time.Now().Unix()
	var userID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, role, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		in.Email, string(hash), string(rbac.RoleStudent), now).Scan(&userID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			err = ErrEmailTaken
		}
		return Student{}, err
	}

	st = Student{
		UserID:     userID,
		Name:       in.Name,
		RollNumber: in.RollNumber,
		Department: in.Department,
		Phone:      in.Phone,
		CreatedAt:  now,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO students (user_id, name, roll_number, department, phone, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		st.UserID, st.Name, st.RollNumber, st.Department, st.Phone, st.CreatedAt).Scan(&st.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			err = ErrRollNumberTaken
		}
		return Student{}, err
	}
	return st, nil
}

// Authenticate compares against the stored bcrypt hash. Missing users and
// wrong passwords return the same error.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	u.Role = rbac.Role(role)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.Role = rbac.Role(role)
	return u, nil
}

func (s *Store) GetStudent(ctx context.Context, id int64) (Student, error) {
	return s.getStudent(ctx, `SELECT id, user_id, name, roll_number, department, phone, created_at
		FROM students WHERE id=$1`, id)
}

func (s *Store) GetStudentByUser(ctx context.Context, userID int64) (Student, error) {
	return s.getStudent(ctx, `SELECT id, user_id, name, roll_number, department, phone, created_at
		FROM students WHERE user_id=$1`, userID)
}

func (s *Store) getStudent(ctx context.Context, query string, arg int64) (Student, error) {
	var st Student
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&st.ID, &st.UserID, &st.Name, &st.RollNumber, &st.Department, &st.Phone, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

type ListOpts struct {
	Q      string // case-insensitive substring over name/roll/department
	Limit  int
	Offset int
}

type StudentPage struct {
	Students []Student `json:"students"`
	Total    int       `json:"total"`
}

func (s *Store) ListStudents(ctx context.Context, opts ListOpts) (StudentPage, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	where := ``
	args := []any{}
	if opts.Q != "" {
		where = ` WHERE LOWER(name) LIKE '%'||LOWER($1)||'%'
			OR LOWER(roll_number) LIKE '%'||LOWER($2)||'%'
			OR LOWER(department) LIKE '%'||LOWER($3)||'%'`
		args = []any{opts.Q, opts.Q, opts.Q}
	}

	page := StudentPage{Students: []Student{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&page.Total); err != nil {
		return StudentPage{}, err
	}

	n := len(args)
	query := `SELECT id, user_id, name, roll_number, department, phone, created_at
		FROM students` + where + ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return StudentPage{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.UserID, &st.Name, &st.RollNumber, &st.Department, &st.Phone, &st.CreatedAt); err != nil {
			return StudentPage{}, err
		}
		page.Students = append(page.Students, st)
	}
	return page, rows.Err()
}

func (s *Store) RecentStudents(ctx context.Context, limit int) ([]Student, error) {
	page, err := s.ListStudents(ctx, ListOpts{Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Students, nil
}

func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return n, err
}

// DeleteStudent removes the student's owning user; the student row and its
// results follow via ON DELETE CASCADE.
func (s *Store) DeleteStudent(ctx context.Context, id int64) error {
	var userID int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM students WHERE id=$1`, id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	return err
}

// EnsureDefaultAdmin provisions the administrator account on first run.
func (s *Store) EnsureDefaultAdmin(ctx context.Context, email, password string) (created bool, err error) {
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email=$1`, email).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return false, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, role, created_at) VALUES ($1,$2,$3,$4)`,
		email, string(hash), string(rbac.RoleAdmin), time.Now().Unix())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
