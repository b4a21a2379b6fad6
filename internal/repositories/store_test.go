package repositories

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"campuslink/internal/apperror"
	"campuslink/internal/models"
	"campuslink/internal/services"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder keeps every statement gorm builds.
type sqlRecorder struct {
	logger.Interface
	stmts []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *sqlRecorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	stmt, _ := fc()
	r.stmts = append(r.stmts, stmt)
}

func (r *sqlRecorder) find(t *testing.T, prefix string) string {
	t.Helper()
	for _, stmt := range r.stmts {
		if strings.HasPrefix(stmt, prefix) {
			return stmt
		}
	}
	t.Fatalf("no %s statement in %q", prefix, r.stmts)
	return ""
}

// stubPool never runs anything; dry run mode only builds statements.
type stubPool struct{}

func (*stubPool) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return nil, errors.New("stub pool")
}

func (*stubPool) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errors.New("stub pool")
}

func (*stubPool) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("stub pool")
}

func (*stubPool) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (*stubPool) BeginTx(ctx context.Context, opts *sql.TxOptions) (gorm.ConnPool, error) {
	return &stubTx{}, nil
}

type stubTx struct {
	stubPool
}

func (*stubTx) Commit() error   { return nil }
func (*stubTx) Rollback() error { return nil }

// newDryRunDB returns a postgres dialect DB that records statements instead of running
// them. Dry run statements report zero affected rows.
func newDryRunDB(t *testing.T) (*gorm.DB, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{Interface: logger.Discard}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: &stubPool{}}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 rec,
	})
	if err != nil {
		t.Fatal(err)
	}
	return db, rec
}

func TestInsertVoteDuplicateIsConflict(t *testing.T) {
	db, _ := newDryRunDB(t)
	attempts := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:unique_violation", func(tx *gorm.DB) {
		attempts++
		tx.AddError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	})
	if err != nil {
		t.Fatal(err)
	}

	repo := NewVoteRepository(db, RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	for _, target := range []services.Target{
		{Kind: services.TargetPost, ID: "p1"},
		{Kind: services.TargetComment, ID: "c1"},
	} {
		attempts = 0
		err := repo.InsertVote(context.Background(), target, "u1", models.ActionLike)
		if !errors.Is(err, apperror.ErrConflictRetry) {
			t.Errorf("%s: error = %v, want conflict", target, err)
		}
		if attempts != 1 {
			t.Errorf("%s: attempts = %d, want 1", target, attempts)
		}
	}
}

func TestIncrementCounter(t *testing.T) {
	tests := []struct {
		name    string
		target  services.Target
		field   services.CounterField
		delta   int
		wantSQL string
		wantErr error
	}{
		{"post like", services.Target{Kind: services.TargetPost, ID: "p1"}, services.FieldLikeCount, -1,
			`UPDATE "posts" SET "like_count"=GREATEST(like_count + -1, 0) WHERE id = 'p1'`, apperror.ErrNotFound},
		{"comment dislike", services.Target{Kind: services.TargetComment, ID: "c1"}, services.FieldDislikeCount, 1,
			`UPDATE "comments" SET "dislike_count"=GREATEST(dislike_count + 1, 0) WHERE id = 'c1'`, apperror.ErrNotFound},
		{"post dislike", services.Target{Kind: services.TargetPost, ID: "p1"}, services.FieldDislikeCount, 1, "", apperror.ErrInvalidInput},
		{"unknown field", services.Target{Kind: services.TargetComment, ID: "c1"}, services.CounterField("views"), 1, "", apperror.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, rec := newDryRunDB(t)
			err := NewVoteRepository(db, noRetry).IncrementCounter(context.Background(), tt.target, tt.field, tt.delta)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantSQL == "" {
				if len(rec.stmts) != 0 {
					t.Errorf("unexpected statements %q", rec.stmts)
				}
				return
			}
			if got := rec.find(t, "UPDATE"); got != tt.wantSQL {
				t.Errorf("sql = %q\nwant  %q", got, tt.wantSQL)
			}
		})
	}
}

func TestUpdateVoteActionMissingVote(t *testing.T) {
	db, rec := newDryRunDB(t)
	err := NewVoteRepository(db, noRetry).UpdateVoteAction(context.Background(),
		services.Target{Kind: services.TargetComment, ID: "c1"}, "u1", models.ActionDislike)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
	if stmt := rec.find(t, "UPDATE"); !strings.Contains(stmt, `comment_id = 'c1' AND user_id = 'u1'`) {
		t.Errorf("sql = %q", stmt)
	}
}

func TestRecountTargetLocksCounters(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewVoteRepository(db, noRetry)
	target := services.Target{Kind: services.TargetPost, ID: "p1"}

	if _, _, err := repo.GetCounters(context.Background(), target); err != nil {
		t.Fatal(err)
	}
	if stmt := rec.find(t, "SELECT id, id AS post_id"); strings.Contains(stmt, "FOR UPDATE") {
		t.Errorf("plain read locks the row: %q", stmt)
	}

	rec.stmts = nil
	res, err := repo.RecountTarget(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	if res.Drifted() {
		t.Errorf("result = %+v, want no drift", res)
	}
	counters := rec.find(t, "SELECT id, id AS post_id")
	if !strings.HasSuffix(counters, "FOR UPDATE") {
		t.Errorf("counters read = %q, want FOR UPDATE", counters)
	}
	if rec.stmts[0] != counters {
		t.Errorf("counters are not read first: %q", rec.stmts)
	}
	if count := rec.find(t, "SELECT count(*)"); !strings.Contains(count, `"post_likes"`) {
		t.Errorf("count = %q", count)
	}
}

func TestUpsertCourseAssignment(t *testing.T) {
	db, rec := newDryRunDB(t)
	err := NewPlanRepository(db, noRetry).UpsertCourseAssignment(context.Background(), &models.CourseAssignment{
		ID: "a1", UserID: "u1", ItemKey: models.AnchorCreditKey, Category: models.GeneralElectives, Credits: 3, Kind: models.KindAnchorCredit,
	})
	if err != nil {
		t.Fatal(err)
	}

	stmt := rec.find(t, "INSERT")
	for _, want := range []string{
		`INSERT INTO "course_assignments"`,
		`ON CONFLICT ("user_id","item_key") DO UPDATE SET`,
		`"category"="excluded"."category"`,
		`"credits"="excluded"."credits"`,
	} {
		if !strings.Contains(stmt, want) {
			t.Errorf("sql %q\nmissing %q", stmt, want)
		}
	}
	for _, stmt := range rec.stmts {
		if strings.Contains(stmt, `INSERT INTO "users"`) || strings.Contains(stmt, `INSERT INTO "courses"`) {
			t.Errorf("association written: %q", stmt)
		}
	}
}

func TestSaveSpecialRequirementReplacesRow(t *testing.T) {
	db, rec := newDryRunDB(t)
	category := models.GeneralElectives
	rule := &models.SpecialRequirement{ID: 7, UserID: "u1", RequirementType: models.RequirementEthics, CreditAmount: 1, DeductedFromCategory: &category}
	if err := NewPlanRepository(db, noRetry).SaveSpecialRequirement(context.Background(), rule); err != nil {
		t.Fatal(err)
	}

	if len(rec.stmts) != 2 {
		t.Fatalf("statements = %q", rec.stmts)
	}
	if !strings.HasPrefix(rec.stmts[0], `DELETE FROM "special_requirements" WHERE user_id = 'u1' AND requirement_type = 'ethics_course'`) {
		t.Errorf("first = %q", rec.stmts[0])
	}
	if !strings.HasPrefix(rec.stmts[1], `INSERT INTO "special_requirements"`) {
		t.Errorf("second = %q", rec.stmts[1])
	}
}

func TestRecordViewIgnoresRepeats(t *testing.T) {
	db, rec := newDryRunDB(t)
	userID := "u1"
	if err := NewForumRepository(db, noRetry).RecordView(context.Background(), "p1", &userID); err != nil {
		t.Fatal(err)
	}
	stmt := rec.find(t, "INSERT")
	if !strings.Contains(stmt, `INSERT INTO "post_views"`) || !strings.Contains(stmt, `ON CONFLICT ("post_id","user_id") DO NOTHING`) {
		t.Errorf("sql = %q", stmt)
	}
}

func TestDeletePostRequiresOwner(t *testing.T) {
	db, rec := newDryRunDB(t)
	err := NewForumRepository(db, noRetry).DeletePost(context.Background(), "p1", "u2")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
	if stmt := rec.find(t, "DELETE"); !strings.Contains(stmt, `id = 'p1' AND user_id = 'u2'`) {
		t.Errorf("sql = %q", stmt)
	}
}

func TestListPostsByUserNewestFirst(t *testing.T) {
	db, rec := newDryRunDB(t)
	if _, err := NewForumRepository(db, noRetry).ListPostsByUser(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	stmt := rec.find(t, "SELECT")
	for _, want := range []string{"AS view_count", "posts.user_id = 'u1'", "ORDER BY posts.created_at DESC"} {
		if !strings.Contains(stmt, want) {
			t.Errorf("sql %q\nmissing %q", stmt, want)
		}
	}
}
