package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("BOOKSCOUT_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "BOOKSCOUT_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "BOOKSCOUT_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "BOOKSCOUT_TEST_MISSING", "default"))
}

func TestGetBoolConfigValue(t *testing.T) {
	t.Setenv("BOOKSCOUT_TEST_BOOL", "yes")
	assert.True(t, getBoolConfigValue("", "BOOKSCOUT_TEST_BOOL", false))

	t.Setenv("BOOKSCOUT_TEST_BOOL", "0")
	assert.False(t, getBoolConfigValue("", "BOOKSCOUT_TEST_BOOL", true))

	assert.True(t, getBoolConfigValue("", "BOOKSCOUT_TEST_BOOL_MISSING", true))
}

func TestGetIntConfigValue(t *testing.T) {
	t.Setenv("BOOKSCOUT_TEST_INT", "7")
	assert.Equal(t, 7, getIntConfigValue("", "BOOKSCOUT_TEST_INT", 3))

	t.Setenv("BOOKSCOUT_TEST_INT", "not-a-number")
	assert.Equal(t, 3, getIntConfigValue("", "BOOKSCOUT_TEST_INT", 3))
}

func TestParseDurationValue(t *testing.T) {
	d, err := parseDurationValue("", "BOOKSCOUT_TEST_DUR_MISSING", "2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	t.Setenv("BOOKSCOUT_TEST_DUR", "bogus")
	_, err = parseDurationValue("", "BOOKSCOUT_TEST_DUR", "2s")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nBOOKSCOUT_FILE_KEY=file-value\nBOOKSCOUT_QUOTED=\"quoted\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Setenv("BOOKSCOUT_FILE_KEY", "")
	os.Unsetenv("BOOKSCOUT_FILE_KEY")
	t.Setenv("BOOKSCOUT_QUOTED", "")
	os.Unsetenv("BOOKSCOUT_QUOTED")

	require.NoError(t, loadEnvFile(envPath))

	assert.Equal(t, "file-value", os.Getenv("BOOKSCOUT_FILE_KEY"))
	assert.Equal(t, "quoted", os.Getenv("BOOKSCOUT_QUOTED"))
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.App.Environment = "development"
	cfg.Logger.Level = "info"
	cfg.Data.BasePath = "/tmp/bookscout"
	cfg.Crawl.ListsPerBook = 3
	cfg.Crawl.ItemsPerList = 10

	require.NoError(t, cfg.Validate())

	cfg.App.Environment = "weird"
	assert.Error(t, cfg.Validate())

	cfg.App.Environment = "development"
	cfg.Crawl.ListsPerBook = 0
	assert.Error(t, cfg.Validate())
}
