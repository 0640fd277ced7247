package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
database:
  path: `+filepath.Join(t.TempDir(), "db", "neocare.db")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 14, cfg.Booking.LookaheadDays)
	assert.Equal(t, 5, cfg.Booking.PreviewDates)
	assert.Equal(t, "Asia/Manila", cfg.Booking.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, time.Hour, cfg.RecommendationCacheTTL())
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Manila", loc.String())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("NEOCARE_API_KEY", "secret-key")

	path := writeFile(t, "config.yaml", `
database:
  path: `+filepath.Join(t.TempDir(), "neocare.db")+`
recommendation:
  base_url: https://recommend.example.com
  api_key: ${NEOCARE_API_KEY}
  cache_ttl_seconds: 120
booking:
  lookahead_days: 7
  session_timeout_minutes: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.Recommendation.APIKey)
	assert.Equal(t, 7, cfg.Booking.LookaheadDays)
	assert.Equal(t, 15*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 2*time.Minute, cfg.RecommendationCacheTTL())
}

func TestLoadConsultants(t *testing.T) {
	path := writeFile(t, "consultants.yaml", `
consultants:
  - id: c1
    name: Dr. Reyes
    specialty: Obstetrics
    hourly_rate: 1500
    available_days: [Monday, Wednesday]
    consultation_hours:
      - 8:00 AM to 9:00 AM
      - 2:00 PM to 3:00 PM
  - id: c2
    name: Dr. Santos
    available_days: [Friday]
    consultation_hours:
      - 10:00 AM to 11:00 AM
`)

	consultants, err := LoadConsultants(path)
	require.NoError(t, err)
	require.Len(t, consultants, 2)

	assert.Equal(t, "Dr. Reyes", consultants[0].Name)
	assert.Equal(t, []string{"Monday", "Wednesday"}, consultants[0].AvailableDays)
	assert.Equal(t, float64(1500), consultants[0].HourlyRate)
	assert.Equal(t, []string{"10:00 AM to 11:00 AM"}, consultants[1].ConsultationHours)
}

func TestLoadConsultantsMissingID(t *testing.T) {
	path := writeFile(t, "consultants.yaml", `
consultants:
  - name: Dr. Nameless
`)

	_, err := LoadConsultants(path)
	assert.Error(t, err)
}
