package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mini-rag/internal/models"
	"mini-rag/internal/vectorindex"
)

func TestOps(t *testing.T) {
	tests := []struct {
		metric   vectorindex.Metric
		opclass  string
		operator string
	}{
		{vectorindex.MetricCosine, "vector_cosine_ops", "<=>"},
		{"", "vector_cosine_ops", "<=>"},
		{vectorindex.MetricEuclidean, "vector_l2_ops", "<->"},
		{vectorindex.MetricDotProduct, "vector_ip_ops", "<#>"},
	}

	for _, tc := range tests {
		opclass, operator, err := ops(tc.metric)
		require.NoError(t, err)
		assert.Equal(t, tc.opclass, opclass)
		assert.Equal(t, tc.operator, operator)
	}

	_, _, err := ops("manhattan")
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 0.75, score(vectorindex.MetricCosine, 0.25), 1e-6)
	assert.InDelta(t, -2.0, score(vectorindex.MetricEuclidean, 2), 1e-6)
	assert.InDelta(t, 3.0, score(vectorindex.MetricDotProduct, -3), 1e-6)
}

func TestMetricFromComment(t *testing.T) {
	assert.Equal(t, vectorindex.MetricDotProduct, metricFromComment("metric=dotproduct"))
	assert.Equal(t, vectorindex.MetricCosine, metricFromComment(""))
	assert.Equal(t, vectorindex.MetricCosine, metricFromComment("something else"))
}

func TestTableName(t *testing.T) {
	db := &DB{Prefix: DefaultTablePrefix}

	assert.Equal(t, `"vectors_gemini-final-index"`, db.table("gemini-final-index"))
}

// PostgresTestSuite needs a database with the pgvector extension available,
// e.g. MINIRAG_TEST_DATABASE_URL=postgres://localhost/minirag_test.
type PostgresTestSuite struct {
	suite.Suite
	db *DB
}

func (s *PostgresTestSuite) SetupSuite() {
	url := os.Getenv("MINIRAG_TEST_DATABASE_URL")
	if url == "" {
		s.T().Skip("MINIRAG_TEST_DATABASE_URL not set")
	}

	db, err := NewDB(context.Background(), url)
	s.Require().NoError(err)
	db.Prefix = "test_vectors_"
	s.db = db
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *PostgresTestSuite) SetupTest() {
	ctx := context.Background()
	names, err := s.db.ListIndexes(ctx)
	s.Require().NoError(err)
	for _, name := range names {
		s.Require().NoError(s.db.DeleteIndex(ctx, name))
	}
}

func (s *PostgresTestSuite) TestLifecycle() {
	ctx := context.Background()

	s.Require().NoError(s.db.CreateIndex(ctx, vectorindex.Spec{Name: "idx", Dimension: 3, Metric: vectorindex.MetricCosine}))

	desc, err := s.db.DescribeIndex(ctx, "idx")
	s.Require().NoError(err)
	s.Equal(3, desc.Dimension)
	s.Equal(vectorindex.MetricCosine, desc.Metric)

	idx, err := s.db.Index(ctx, "idx")
	s.Require().NoError(err)

	n, err := idx.Upsert(ctx, []models.VectorRecord{
		{ID: "id-0", Values: []float32{1, 0, 0}, Metadata: models.Chunk{Text: "x", Source: "a.pdf", ChunkID: 0}},
		{ID: "id-1", Values: []float32{0, 1, 0}, Metadata: models.Chunk{Text: "y", Source: "a.pdf", ChunkID: 1}},
	})
	s.Require().NoError(err)
	s.Equal(2, n)

	_, err = idx.Upsert(ctx, []models.VectorRecord{
		{ID: "id-1", Values: []float32{0, 1, 0}, Metadata: models.Chunk{Text: "y2", Source: "b.pdf", ChunkID: 1}},
	})
	s.Require().NoError(err)

	matches, err := idx.Query(ctx, []float32{0, 1, 0}, 10)
	s.Require().NoError(err)
	s.Require().Len(matches, 2)
	s.Equal("id-1", matches[0].ID)
	s.Equal("y2", matches[0].Metadata.Text)
	s.InDelta(1.0, matches[0].Score, 1e-5)

	s.Require().NoError(s.db.DeleteIndex(ctx, "idx"))
	_, err = s.db.DescribeIndex(ctx, "idx")
	s.ErrorIs(err, vectorindex.ErrIndexNotFound)
}

func TestPostgresTestSuite(t *testing.T) {
	suite.Run(t, new(PostgresTestSuite))
}
