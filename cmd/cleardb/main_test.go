package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableNames(t *testing.T) {
	tables, err := parseTableNames(" Files, pages ,,")
	require.NoError(t, err)
	assert.Equal(t, []string{"files", "pages"}, tables)

	_, err = parseTableNames("pages; DROP TABLE users")
	assert.Error(t, err)
}
