package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gonlopt/internal/nlopt"
)

const tutorialYAML = `
problem: tutorial
optimizer: nlopt
algorithm: LD_MMA
x0: [1.234, 5.678]
seed: 7
stop:
  xtolRel: 1e-4
  maxEval: 500
  maxTime: 10s
convergence:
  patience: 50
traceEvery: 5
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(tutorialYAML))
	require.NoError(t, err)

	assert.Equal(t, "tutorial", cfg.Problem)
	assert.Equal(t, OptimizerNLopt, cfg.Optimizer)
	assert.Equal(t, []float64{1.234, 5.678}, cfg.X0)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 5, cfg.TraceEvery)
	assert.Equal(t, 1e-3, cfg.Convergence.Threshold, "threshold defaulted when patience is set")
	assert.Equal(t, 100, cfg.Mayfly.Iterations)
	assert.Equal(t, 30, cfg.Mayfly.Population)

	assert.Equal(t, []nlopt.StopCond{
		nlopt.XTolRel(1e-4),
		nlopt.MaxEval(500),
		nlopt.MaxTime(10 * time.Second),
	}, cfg.Stops())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("problem: sphere\nalgorithmn: LD_MMA\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "algorithmn")
}

func TestDecodeLeavesConfigRaw(t *testing.T) {
	cfg, err := Decode([]byte("stop:\n  maxEval: 10\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Problem)
	assert.Empty(t, cfg.Optimizer, "defaults are not applied")
	assert.Equal(t, 10, cfg.Stop.MaxEval)

	_, err = Parse([]byte("stop:\n  maxEval: 10\n"))
	assert.Error(t, err, "Parse validates")
}

func TestValidate(t *testing.T) {
	stopVal := -1.0
	tests := []struct {
		name  string
		cfg   RunConfig
		field string
	}{
		{"missing problem", RunConfig{}, "problem"},
		{"unknown problem", RunConfig{Problem: "nope"}, "problem"},
		{"unknown optimizer", RunConfig{Problem: "sphere", Optimizer: "pso"}, "optimizer"},
		{"unknown algorithm", RunConfig{Problem: "sphere", Algorithm: "LD_NOPE"}, "algorithm"},
		{"unknown local algorithm", RunConfig{Problem: "sphere", LocalAlgorithm: "nope"}, "localAlgorithm"},
		{"x0 length", RunConfig{Problem: "sphere", X0: []float64{1}}, "x0"},
		{"xtolAbs length", RunConfig{Problem: "sphere", Stop: StopConfig{XTolAbs: []float64{1, 2}}}, "stop.xtolAbs"},
		{"negative maxEval", RunConfig{Problem: "sphere", Stop: StopConfig{MaxEval: -1}}, "stop.maxEval"},
		{"bad maxTime", RunConfig{Problem: "sphere", Stop: StopConfig{MaxTime: "soon"}}, "stop.maxTime"},
		{"small population", RunConfig{Problem: "sphere", Mayfly: MayflyConfig{Population: 5}}, "mayfly.population"},
		{"negative traceEvery", RunConfig{Problem: "sphere", TraceEvery: -1}, "traceEvery"},
		{"valid", RunConfig{Problem: "sphere", Stop: StopConfig{StopVal: &stopVal}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if cfg.Mayfly.Population == 0 {
				cfg.ApplyDefaults()
			} else if cfg.Optimizer == "" {
				cfg.Optimizer = OptimizerNLopt
			}

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tutorialYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "LD_MMA", cfg.Algorithm)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(tutorialYAML))
	require.NoError(t, err)

	data, err := cfg.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestJSONMatchesYAML(t *testing.T) {
	var fromJSON RunConfig
	require.NoError(t, json.Unmarshal([]byte(`{"problem":"tutorial","optimizer":"nlopt","algorithm":"LD_MMA","x0":[1.234,5.678],"seed":7,"stop":{"xtolRel":1e-4,"maxEval":500,"maxTime":"10s"},"convergence":{"patience":50},"traceEvery":5}`), &fromJSON))
	fromJSON.ApplyDefaults()
	require.NoError(t, fromJSON.Validate())

	fromYAML, err := Parse([]byte(tutorialYAML))
	require.NoError(t, err)
	assert.Equal(t, *fromYAML, fromJSON)
}

func TestBuild(t *testing.T) {
	for _, name := range []string{OptimizerNLopt, OptimizerMayfly, OptimizerHybrid} {
		cfg := &RunConfig{Problem: "sphere", Optimizer: name}
		cfg.ApplyDefaults()
		require.NoError(t, cfg.Validate())

		o, err := cfg.BuildOptimizer(nil)
		require.NoError(t, err)
		assert.Equal(t, name, o.Name())
	}

	cfg := &RunConfig{Problem: "sphere", X0: []float64{1, 2, 3}}
	p, err := cfg.BuildProblem()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, p.X0)
}
