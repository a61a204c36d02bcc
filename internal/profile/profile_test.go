package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/schedule"
)

func compileString(t *testing.T, src string) (*Profile, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v)
}

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, 500*time.Millisecond, p.Intervals[schedule.KindResult])
	assert.Equal(t, time.Second, p.Intervals[schedule.KindTestBed])
	assert.Equal(t, 10*time.Second, p.Watchdog)
	assert.Equal(t, 3*time.Second, p.Grace)

	// Capacity ordering: systematic < idle < walkthrough.
	sys := p.Cache[regime.SystematicRunning]
	idle := p.Cache[regime.Idle]
	walk := p.Cache[regime.WalkthroughRunning]
	assert.Less(t, sys.Capacity, idle.Capacity)
	assert.Less(t, idle.Capacity, walk.Capacity)
	assert.Greater(t, sys.Pressure, sys.Capacity)
	assert.Less(t, sys.RetainK, walk.RetainK, "protected regime retains more under pressure")
}

func TestCompile_FullProfile(t *testing.T) {
	p, err := compileString(t, `
intervals: {
	testbed: 2000
	result:  250
}
cache: {
	systematic:  {capacity: 4, pressure: 8, retain: 1}
	idle:        {capacity: 10, pressure: 20, retain: 3}
	walkthrough: {capacity: 32, pressure: 64, retain: 12}
}
guardian: {
	interval_minutes: {idle: 1, systematic: 3, walkthrough: 7}
	thresholds: {idle: 0.5, systematic: 0.4, walkthrough: 0.9}
	max_failures: 5
}
render: {
	watchdog_ms: 5000
	grace_ms:    1000
}
`)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, p.Intervals[schedule.KindTestBed])
	assert.Equal(t, 250*time.Millisecond, p.Intervals[schedule.KindResult])

	assert.Equal(t, 4, p.Cache[regime.SystematicRunning].Capacity)
	assert.Equal(t, 64, p.Cache[regime.WalkthroughRunning].Pressure)
	assert.Equal(t, 3, p.Cache[regime.Idle].RetainK)

	assert.Equal(t, time.Minute, p.Guardian.Intervals[regime.Idle])
	assert.Equal(t, 7*time.Minute, p.Guardian.Intervals[regime.WalkthroughRunning])
	assert.Equal(t, 0.4, p.Guardian.Thresholds[regime.SystematicRunning])
	assert.Equal(t, 5, p.Guardian.MaxConsecutiveFailures)

	assert.Equal(t, 5*time.Second, p.Watchdog)
	assert.Equal(t, time.Second, p.Grace)
}

func TestCompile_PartialOverrideKeepsDefaults(t *testing.T) {
	p, err := compileString(t, `
intervals: {result: 100}
`)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, p.Intervals[schedule.KindResult])
	assert.Equal(t, time.Second, p.Intervals[schedule.KindTestBed], "unset knobs keep defaults")
	assert.Equal(t, Default().Watchdog, p.Watchdog)
}

func TestCompile_Rejections(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"negative interval", `intervals: {result: -5}`},
		{"zero interval", `intervals: {result: 0}`},
		{"unknown interval kind", `intervals: {reslut: 100}`},
		{"pressure below capacity", `cache: {idle: {capacity: 10, pressure: 5, retain: 1}}`},
		{"retain above capacity", `cache: {idle: {capacity: 4, pressure: 8, retain: 9}}`},
		{"zero capacity", `cache: {idle: {capacity: 0, pressure: 8}}`},
		{"threshold above one", `guardian: {thresholds: {idle: 1.5}}`},
		{"sub-minute guardian interval", `guardian: {interval_minutes: {idle: 0}}`},
		{"zero max failures", `guardian: {max_failures: 0}`},
		{"zero watchdog", `render: {watchdog_ms: 0}`},
		{"negative grace", `render: {grace_ms: -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
profile: {
	intervals: {result: 750}
	render: {grace_ms: 500}
}
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, p.Intervals[schedule.KindResult])
	assert.Equal(t, 500*time.Millisecond, p.Grace)
}

func TestLoad_MissingProfileStruct(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte(`settings: {}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	assert.Error(t, err)
}
