package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/neurogov/pkg/config"
	"github.com/polisai/neurogov/pkg/domain"
)

const shardHeader = "node_id,layer,region,latitude,longitude,parameter,unit,value,window,eco_impact_score,notes\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeShard(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shard.csv")
	require.NoError(t, os.WriteFile(path, []byte(shardHeader+rows), 0o600))
	return path
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()

	assert.Equal(t, "neurogov", cmd.Use)
	flag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, defaultLogLevel, flag.DefValue)

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Use)
	assert.NotNil(t, serve.Flags().Lookup("config"))
	assert.NotNil(t, serve.Flags().Lookup("listen"))
}

func TestWriteShardReport(t *testing.T) {
	path := writeShard(t,
		"W1,EcoLink,Phoenix,33.4,-112.0,PFBS_ngL,ng/L,3.1,2026Q1,0.4,water\n"+
			"E1,EcoLink,Phoenix,33.4,-112.0,ElectricityIntensity,gCO2/kWh,410,2026Q1,0.8,grid\n"+
			"B1,BCIIngress,Phoenix,33.4,-112.0,GatewayPowerDraw,mW,500,2026Q1,0.6,gateway\n"+
			"bad,row\n")

	var out bytes.Buffer
	require.NoError(t, writeShardReport(context.Background(), path, &out, quietLogger()))

	report := out.String()
	assert.Contains(t, report, "Phoenix Neurostack Eco-Governance Summary 2026\n")
	assert.Contains(t, report, "Nodes loaded: 3\n")
	assert.Contains(t, report, "Average Eco-Impact Score (all nodes): 0.600\n")
	assert.Contains(t, report, "Water-linked Eco-Impact (PFBS, E. coli): 0.400\n")
	assert.Contains(t, report, "Energy-linked Eco-Impact (lab intensity): 0.800\n")
	assert.Contains(t, report, "BCI & Governance Eco-Impact: 0.600\n")
}

func TestWriteShardReportFailures(t *testing.T) {
	var out bytes.Buffer

	err := writeShardReport(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), &out, quietLogger())
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))

	err = writeShardReport(context.Background(), writeShard(t, ""), &out, quietLogger())
	assert.True(t, errors.Is(err, errNoRecords))
	assert.Empty(t, out.String())
}

func TestComponentsApply(t *testing.T) {
	cfg := config.Default()
	cfg.Consensus.Threshold = 0.5
	cfg.Consensus.Weights["regulator"] = 3
	b := cfg.Safety.Axes["power"]
	b.Max = 900
	cfg.Safety.Axes["power"] = b
	cfg.Dreamnet.CarbonLimit = 0.05

	c := newComponents(cfg, quietLogger())
	require.NoError(t, c.apply(cfg))

	assert.Equal(t, 0.5, c.engine.ConsensusThreshold())
	w, err := c.engine.StakeholderWeight(domain.RoleRegulator)
	require.NoError(t, err)
	assert.Equal(t, 3, w)

	power, err := c.kernel.Constraint(domain.AxisPower)
	require.NoError(t, err)
	assert.Equal(t, 900.0, power.Max)
	assert.Equal(t, 0.05, c.dreamnet.CarbonLimit())
}

func TestReloadKeepsDecisionBounds(t *testing.T) {
	cfg := config.Default()
	c := newComponents(cfg, quietLogger())
	require.NoError(t, c.apply(cfg))

	// An approved decision widens the power range, then the value moves into it.
	require.NoError(t, c.kernel.SetBounds(domain.AxisPower, 0, 900))
	require.NoError(t, c.kernel.Update(domain.AxisPower, 800))

	next := config.Default()
	next.Logging.Level = "debug"
	require.NoError(t, c.apply(next))

	power, err := c.kernel.Constraint(domain.AxisPower)
	require.NoError(t, err)
	assert.Equal(t, 900.0, power.Max)
	assert.False(t, power.Violated)

	// A changed configured range is still applied.
	changed := config.Default()
	b := changed.Safety.Axes["power"]
	b.Max = 850
	changed.Safety.Axes["power"] = b
	require.NoError(t, c.apply(changed))

	power, err = c.kernel.Constraint(domain.AxisPower)
	require.NoError(t, err)
	assert.Equal(t, 850.0, power.Max)
	assert.False(t, power.Violated)

	duty, err := c.kernel.Constraint(domain.AxisDuty)
	require.NoError(t, err)
	assert.Equal(t, 0.8, duty.Max)
}

func TestIngestShard(t *testing.T) {
	path := writeShard(t,
		"G1,GovSafety,Phoenix,33.4,-112.0,MaxCognitiveLoadIndex,index,0.9,2026Q1,0.5,cap\n"+
			"G2,GovSafety,Phoenix,33.4,-112.0,SafetyKernelDim,count,7,2026Q1,0.5,dim\n")

	c := newComponents(config.Default(), quietLogger())
	ingestShard(context.Background(), path, c.kernel, quietLogger())

	cognitive, err := c.kernel.Constraint(domain.AxisCognitiveLoad)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cognitive.Current)
	assert.True(t, cognitive.Violated)

	// A missing shard leaves the kernel untouched.
	fresh := newComponents(config.Default(), quietLogger())
	ingestShard(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), fresh.kernel, quietLogger())
	assert.Empty(t, fresh.kernel.Violations())
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveHTTP(ctx, "127.0.0.1:0", nil, quietLogger())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeHTTPBindFailure(t *testing.T) {
	err := serveHTTP(context.Background(), "256.0.0.1:bad", nil, quietLogger())
	assert.Error(t, err)
}
