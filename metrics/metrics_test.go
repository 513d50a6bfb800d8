package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bludya/pong-checker/pingpong"
	"github.com/bludya/pong-checker/reconcile"
)

func sampleReport() reconcile.Report {
	a, b, c := common.HexToHash("0xa"), common.HexToHash("0xb"), common.HexToHash("0xc")
	return reconcile.Reconcile(
		[]pingpong.PingEvent{{TxHash: a}, {TxHash: b}, {TxHash: c}},
		[]pingpong.PongEvent{{PingTxHash: a}, {PingTxHash: a}},
	)
}

func TestObserve(t *testing.T) {
	m := New("0xb0")
	m.Observe(sampleReport())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.pings))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pongs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uniquePingRefs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicatePongs))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.orphanPongs))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.missingPongs))
	assert.Equal(t, 66.67, testutil.ToFloat64(m.missingPercentage))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.findings.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("info")))
	assert.Positive(t, testutil.ToFloat64(m.lastRun))
}

func TestWriteTextfile(t *testing.T) {
	m := New("0xb0")
	m.Observe(sampleReport())

	path := filepath.Join(t.TempDir(), "pong_checker.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `pong_checker_missing_pongs{candidate="0xb0"} 2`)
	assert.Contains(t, out, `pong_checker_findings{candidate="0xb0",severity="error"} 3`)
	assert.Contains(t, out, "# HELP pong_checker_pings Ping events since the starting block.")
}
