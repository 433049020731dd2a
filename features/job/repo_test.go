package job_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursemind/features/job"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectQuery(`INSERT INTO failed_jobs`).
		WithArgs("123456", "EMBEDDING", []byte(`{"a":1}`), "quota exhausted").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "retries"}).
			AddRow("job-1", time.Now(), 0))

	j := &job.Job{SourceID: "123456", State: "EMBEDDING", Payload: json.RawMessage(`{"a":1}`), Error: "quota exhausted"}
	err = repo.Save(context.Background(), j)

	require.NoError(t, err)
	assert.Equal(t, "job-1", j.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectQuery(`SELECT id, source_id, state, payload, error, retries, created_at FROM failed_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source_id", "state", "payload", "error", "retries", "created_at"}).
			AddRow("job-1", "123456", "EMBEDDING", []byte(`{}`), "boom", 1, time.Now()))

	jobs, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "EMBEDDING", jobs[0].State)
	assert.Equal(t, 1, jobs[0].Retries)
}

func TestPostgresRepo_MarkRetried(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(`UPDATE failed_jobs SET retries = retries \+ 1`).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkRetried(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM failed_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
