package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPeriodBounds(t *testing.T) {
	assert.False(t, ValidPeriod(0))
	assert.True(t, ValidPeriod(MinPeriod))
	assert.True(t, ValidPeriod(3600))
	assert.False(t, ValidPeriod(3601))
	assert.False(t, ValidPeriod(-5))
}

func TestParamHolders(t *testing.T) {
	SetFilename("/tmp/a.log")
	SetTimerPeriod(7)
	assert.Equal(t, "/tmp/a.log", Filename())
	assert.EqualValues(t, 7, TimerPeriod())
}

func TestApplyParamChangeUpdatesBoth(t *testing.T) {
	SetFilename("/tmp/good.log")
	SetTimerPeriod(5)

	applyParamChange("/tmp/new.log", 30)

	assert.Equal(t, "/tmp/new.log", Filename())
	assert.EqualValues(t, 30, TimerPeriod())
}

func TestApplyParamChangeKeepsLastGoodFilename(t *testing.T) {
	SetFilename("/tmp/good.log")
	SetTimerPeriod(5)

	applyParamChange("", 5)
	assert.Equal(t, "/tmp/good.log", Filename())

	applyParamChange(strings.Repeat("a", 5000), 5)
	assert.Equal(t, "/tmp/good.log", Filename(), "over-long filename must not replace the last good path")
}

func TestApplyParamChangeKeepsLastGoodPeriod(t *testing.T) {
	SetFilename("/tmp/good.log")
	SetTimerPeriod(5)

	for _, bad := range []int64{0, -1, 3601} {
		applyParamChange("/tmp/good.log", bad)
		assert.EqualValues(t, 5, TimerPeriod(), "period %d", bad)
	}
}

func TestApplyParamChangeRejectsOneKeepsOther(t *testing.T) {
	SetFilename("/tmp/good.log")
	SetTimerPeriod(5)

	// a bad filename must not block a valid period change, and vice versa
	applyParamChange(strings.Repeat("a", 5000), 60)
	assert.Equal(t, "/tmp/good.log", Filename())
	assert.EqualValues(t, 60, TimerPeriod())
}

func TestInitReadsConfigFile(t *testing.T) {
	dirPath := t.TempDir()
	content := []byte(`module:
  filename: /tmp/from-file.log
  timerPeriod: 9
  workerBuffSize: 4
store:
  maxDays: 3
log:
  path: stderr
`)
	require.NoError(t, os.WriteFile(filepath.Join(dirPath, "config.yaml"), content, 0644))

	require.NoError(t, Init(dirPath))

	assert.Equal(t, "/tmp/from-file.log", Filename())
	assert.EqualValues(t, 9, TimerPeriod())
	assert.Equal(t, 4, WorkerBuffSize)
	assert.Equal(t, 3, StoreMaxDays)
	assert.Equal(t, "stderr", LogPath)
	// untouched keys fall back to defaults
	assert.Equal(t, 3600, StoreClearInterval)
}
