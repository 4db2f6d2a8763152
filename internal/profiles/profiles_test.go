package profiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

func TestNewStore_BuiltinsWhenNoDir(t *testing.T) {
	s := NewStore("", 1, zaptest.NewLogger(t))

	require.Len(t, s.All(), 8)
	for _, p := range s.All() {
		assert.NotEmpty(t, p.DeviceName)
		assert.NotEmpty(t, p.UserAgent)
		assert.NotZero(t, p.Viewport.Width)
		assert.NotZero(t, p.Viewport.Height)
		assert.NotZero(t, p.CanvasSeed)
		assert.NotZero(t, p.AudioSeed)
		assert.NotEmpty(t, p.Timezone)
	}
}

func TestNewStore_LoadsCSV(t *testing.T) {
	dir := t.TempDir()
	csv := `device_name,user_agent,viewport_width,viewport_height,device_scale_factor,platform,max_touch_points,hardware_concurrency,device_memory,language,languages,timezone,webgl_vendor,webgl_renderer,os_version,battery_level,battery_charging,canvas_seed,audio_seed
iPhone 16,Mozilla/5.0 (iPhone; CPU iPhone OS 18_0 like Mac OS X),402,874,3,iPhone,5,6,8,en-GB,"en-GB,en",Europe/London,Apple Inc.,Apple GPU,18.0,0.5,true,1234,5678
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "iphone_profiles.csv"), []byte(csv), 0o600))

	s := NewStore(dir, 1, zaptest.NewLogger(t))

	p, ok := s.ByName("iphone 16")
	require.True(t, ok)
	assert.Equal(t, schemas.PlatformIOS, p.Platform)
	assert.Equal(t, schemas.Viewport{Width: 402, Height: 874}, p.Viewport)
	assert.Equal(t, []string{"en-GB", "en"}, p.Languages)
	assert.Equal(t, "Europe/London", p.Timezone)
	assert.Equal(t, int64(1234), p.CanvasSeed)
	assert.Equal(t, int64(5678), p.AudioSeed)
	assert.True(t, p.BatteryCharging)

	// Android CSV absent, so built-ins fill that platform.
	android, err := s.Random(schemas.PlatformAndroid)
	require.NoError(t, err)
	assert.Equal(t, schemas.PlatformAndroid, android.Platform)
}

func TestNewStore_MalformedCSVFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "android_profiles.csv"), []byte("not,a\nvalid\"csv"), 0o600))

	s := NewStore(dir, 1, zaptest.NewLogger(t))

	p, err := s.Random(schemas.PlatformAndroid)
	require.NoError(t, err)
	assert.NotEmpty(t, p.DeviceName)
}

func TestRandom_SeededIsDeterministic(t *testing.T) {
	a := NewStore("", 42, zaptest.NewLogger(t))
	b := NewStore("", 42, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		pa, err := a.Random(schemas.PlatformIOS)
		require.NoError(t, err)
		pb, err := b.Random(schemas.PlatformIOS)
		require.NoError(t, err)
		assert.Equal(t, pa.DeviceName, pb.DeviceName)
	}
}

func TestRandom_AnyPlatform(t *testing.T) {
	s := NewStore("", 7, zaptest.NewLogger(t))
	p, err := s.Random("")
	require.NoError(t, err)
	assert.NotEmpty(t, p.DeviceName)
}

func TestByName_Unknown(t *testing.T) {
	s := NewStore("", 1, zaptest.NewLogger(t))
	_, ok := s.ByName("Nokia 3310")
	assert.False(t, ok)
}
