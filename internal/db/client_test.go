package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewClientFromDB(sqlx.NewDb(mockDB, "postgres"), zap.NewNop()), mock
}

func TestSaveRun(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectExec("INSERT INTO question_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.SaveRun(context.Background(), RunRecord{
		ID:        "run-1",
		Question:  "what causes leaf curl?",
		Route:     "knowledge_graph",
		Answer:    "Leaf curl is caused by...",
		Citations: []byte(`[{"source":"entity:leaf-curl"}]`),
		Trace:     []byte(`[{"name":"routing"}]`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentRuns(t *testing.T) {
	c, mock := newMockClient(t)

	rows := sqlmock.NewRows([]string{
		"id", "question", "route", "answer", "citations", "trace",
		"refinements", "regenerations", "best_effort", "created_at",
	}).AddRow("run-2", "q2", "web_search", "a2", []byte(`[]`), []byte(`[]`), 1, 0, false, time.Now()).
		AddRow("run-1", "q1", "internal", "a1", []byte(`[]`), []byte(`[]`), 0, 0, false, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM question_runs").
		WithArgs(2).
		WillReturnRows(rows)

	runs, err := c.RecentRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, 1, runs[0].Refinements)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunPropagatesError(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectExec("INSERT INTO question_runs").
		WillReturnError(assert.AnError)

	err := c.SaveRun(context.Background(), RunRecord{ID: "run-x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-x")
}
