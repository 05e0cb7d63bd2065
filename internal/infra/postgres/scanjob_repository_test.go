package postgres

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconforge/api/pkg/domain/scanjob"
)

// stubRow feeds canned column values through the rowScanner contract.
type stubRow struct {
	vals []any
}

func (r stubRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *int:
			*p = r.vals[i].(int)
		case *[]byte:
			*p = r.vals[i].([]byte)
		case *sql.NullString:
			*p = r.vals[i].(sql.NullString)
		case *sql.NullTime:
			*p = r.vals[i].(sql.NullTime)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		}
	}
	return nil
}

func jobRow(scanTypes, config, results []byte) stubRow {
	now := time.Now().UTC()
	return stubRow{vals: []any{
		"7b29c5f3-64c8-4f3e-9c57-0a4d1b2e3f40", // id
		7,                                      // target_id
		"3f1a7e02-9c44-4d0b-8a66-5e7f8d9a0b1c", // organization_id
		"9d8c7b6a-5f4e-4d3c-2b1a-0f9e8d7c6b5a", // created_by
		"subdomain_scan",                       // job_type
		scanTypes,
		"medium", // priority
		config,
		"pending", // status
		0,         // progress_percentage
		results,
		sql.NullString{}, // error_message
		sql.NullTime{},   // started_at
		sql.NullTime{},   // completed_at
		now,              // created_at
		now,              // updated_at
	}}
}

// ===== Row scanning =====

func TestScanJobRow_FreshRowDefaults(t *testing.T) {
	repo := NewScanJobRepository(nil)

	job, err := repo.scanJob(jobRow([]byte(`[]`), []byte(`{}`), []byte(`{}`)))
	require.NoError(t, err)

	assert.Equal(t, 7, job.TargetID)
	assert.Equal(t, scanjob.JobTypeSubdomainScan, job.JobType)
	assert.Equal(t, scanjob.StatusPending, job.Status)
	assert.False(t, job.CreatedBy.IsZero())

	// Column defaults round-trip: empty array, empty config object,
	// and no results yet on the entity.
	assert.Equal(t, []string{}, job.ScanTypes)
	assert.JSONEq(t, `{}`, string(job.Config))
	assert.Nil(t, job.Results)
}

func TestScanJobRow_PopulatedDocuments(t *testing.T) {
	repo := NewScanJobRepository(nil)

	job, err := repo.scanJob(jobRow(
		[]byte(`["subdomains","ports"]`),
		[]byte(`{"use_subfinder":true}`),
		[]byte(`{"total_unique":2}`),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"subdomains", "ports"}, job.ScanTypes)
	assert.JSONEq(t, `{"use_subfinder":true}`, string(job.Config))
	assert.JSONEq(t, `{"total_unique":2}`, string(job.Results))
}

func TestScanJobRow_MalformedScanTypes(t *testing.T) {
	repo := NewScanJobRepository(nil)

	_, err := repo.scanJob(jobRow([]byte(`not json`), []byte(`{}`), []byte(`{}`)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan_types")
}

// ===== JSON column helpers =====

func TestJSONDoc(t *testing.T) {
	assert.Equal(t, []byte(`{}`), jsonDoc(nil, "{}"))
	assert.Equal(t, []byte(`[]`), jsonDoc([]byte("  "), "[]"))
	assert.Equal(t, []byte(`{"a":1}`), jsonDoc([]byte(`{"a":1}`), "{}"))
}

func TestEmptyJSONObject(t *testing.T) {
	assert.True(t, emptyJSONObject(nil))
	assert.True(t, emptyJSONObject([]byte(` {} `)))
	assert.False(t, emptyJSONObject([]byte(`{"a":1}`)))
	assert.False(t, emptyJSONObject([]byte(`[]`)))
}

// ===== Schema shape =====

func TestScanJobsSchemaShape(t *testing.T) {
	sqlText, err := os.ReadFile("../../../migrations/001_init.sql")
	require.NoError(t, err)
	schema := string(sqlText)

	assert.Contains(t, schema, "created_by          UUID NOT NULL")
	assert.Contains(t, schema, "scan_types          JSONB NOT NULL DEFAULT '[]'")
	assert.Contains(t, schema, "config              JSONB NOT NULL DEFAULT '{}'")
	assert.Contains(t, schema, "results             JSONB NOT NULL DEFAULT '{}'")
	assert.Contains(t, schema, "scan_jobs_active_unique")
}
