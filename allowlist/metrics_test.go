package allowlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsTextfile(t *testing.T) {
	m := NewMetrics()
	m.sourceProcessed(outcomeOK)
	m.sourceProcessed(outcomeOK)
	m.sourceProcessed(outcomeFailed)
	m.recordRun(&Result{
		Bots:  Bots{"Search - Google Bot": {"a", "b"}, "test_bot": {"c"}},
		Total: 3,
	}, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "good_bots.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(b)

	for _, line := range []string{
		`good_bots_sources_total{outcome="ok"} 2`,
		`good_bots_sources_total{outcome="failed"} 1`,
		`good_bots_bot_ranges{bot="Search - Google Bot"} 2`,
		`good_bots_bot_ranges{bot="test_bot"} 1`,
		`good_bots_ranges_total 3`,
		`good_bots_last_success_timestamp_seconds 1.7e+09`,
	} {
		assert.Contains(t, content, line+"\n")
	}
	assert.True(t, strings.HasPrefix(content, "# HELP "))
}

func TestMetricsRecordRunResetsBots(t *testing.T) {
	m := NewMetrics()
	m.recordRun(&Result{Bots: Bots{"gone": {"a"}}, Total: 1}, time.Now())
	m.recordRun(&Result{Bots: Bots{"kept": {"a", "b"}}, Total: 2}, time.Now())

	assert.Equal(t, 1, testutil.CollectAndCount(m.botRanges))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.botRanges.WithLabelValues("kept")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.sourceProcessed(outcomeOK)
		m.recordRun(&Result{}, time.Now())
	})
}
