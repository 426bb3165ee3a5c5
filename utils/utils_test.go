package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLog(t *testing.T) {
	dir := t.TempDir() + string(filepath.Separator)
	log := NewLog(dir, "conduit")
	log.Infof("pushed %d", 500)
	require.NoError(t, log.Sync())

	body, err := os.ReadFile(filepath.Join(dir, "conduit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "pushed 500")
	assert.Contains(t, string(body), "conduit")
}
