package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synaptica-ai/hospital-insights/pkg/pipeline"
)

func TestWithoutStep(t *testing.T) {
	all := []pipeline.Step{pipeline.StepClean, pipeline.StepTrain}
	assert.Equal(t, []pipeline.Step{pipeline.StepClean}, withoutStep(all, pipeline.StepTrain, true))
	assert.Equal(t, all, withoutStep(all, pipeline.StepTrain, false))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "clean", "warehouse", "features", "train", "runs"} {
		assert.True(t, names[want], want)
	}
}

func TestPrintJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, printJSON(&buf, map[string]int{"rows": 3}))
	assert.Equal(t, "{\n  \"rows\": 3\n}\n", buf.String())
}
