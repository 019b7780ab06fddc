package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFindOptions(t *testing.T) {
	opts := findOptions(50, 100)

	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(50), *opts.Limit)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(100), *opts.Skip)

	sort, ok := opts.Sort.(bson.M)
	require.True(t, ok)
	assert.Equal(t, -1, sort["created_at"])
}
