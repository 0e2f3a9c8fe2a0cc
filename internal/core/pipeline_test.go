package core

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

type pipelineFixture struct {
	oracleRunner *fakeRunner
	shellRunner  *fakeRunner
	audit        *fakeAudit
	events       *recordingEvents
	out          *bytes.Buffer
}

func newPipelineFixture(t *testing.T, noExec bool, oracleResults []*ProcessResult, input ...string) (Pipeline, *pipelineFixture) {
	t.Helper()
	f := &pipelineFixture{
		oracleRunner: scriptedRunner(oracleResults...),
		shellRunner:  scriptedRunner(&ProcessResult{}),
		audit:        &fakeAudit{},
		events:       &recordingEvents{},
		out:          &bytes.Buffer{},
	}
	confirm := NewConfirmationController(newScriptedInput(input...), f.out)
	p := NewPipeline(PipelineOptions{
		Oracle: NewOracleClient(OracleOptions{
			Config: models.OracleConfig{Command: "gemini", Timeout: time.Second, MaxRetries: 2},
			Runner: f.oracleRunner,
			Events: f.events,
			Logger: zerolog.Nop(),
		}),
		Audit: f.audit,
		Enhancer: NewTaskEnhancer(EnhancerOptions{
			Config:  models.EnhancerConfig{MaxIterations: 5},
			Confirm: confirm,
			Out:     f.out,
			Events:  f.events,
			Logger:  zerolog.Nop(),
		}),
		Dispatcher: NewDispatcher(DispatcherOptions{
			Runner:        f.shellRunner,
			Confirm:       confirm,
			Out:           f.out,
			KillOnTimeout: true,
			Events:        f.events,
			Logger:        zerolog.Nop(),
		}),
		Out:    f.out,
		NoExec: noExec,
		Events: f.events,
		Logger: zerolog.Nop(),
		NewID:  func() string { return "run-fixed" },
	})
	return p, f
}

func TestPipeline_ConfirmedTaskIsDispatched(t *testing.T) {
	p, f := newPipelineFixture(t, false, []*ProcessResult{{Stdout: healthyReply}}, "y")

	res, err := p.Run(context.Background(), "list the files in the current folder")
	require.NoError(t, err)
	assert.Equal(t, "run-fixed", res.RunID)
	require.NotNil(t, res.Dispatch)
	assert.Equal(t, StatusSucceeded, res.Dispatch.Status)

	calls := f.shellRunner.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ls -l", calls[0].Command)
	assert.Equal(t, 10*time.Second, calls[0].Timeout)

	require.Len(t, f.audit.tasks, 1)
	assert.Equal(t, "run-fixed", f.audit.runIDs[0])
	assert.False(t, f.audit.tasks[0].IsConfirmed, "audit records the resolved task before confirmation")
}

func TestPipeline_RejectedTaskIsNeverDispatched(t *testing.T) {
	p, f := newPipelineFixture(t, false, []*ProcessResult{{Stdout: healthyReply}}, "n")

	res, err := p.Run(context.Background(), "list files")
	require.NoError(t, err)
	assert.False(t, res.Dispatched())
	assert.Empty(t, f.shellRunner.calls())
	assert.Contains(t, f.out.String(), "rejected")
}

func TestPipeline_ExhaustedEnhancementIsNeverDispatched(t *testing.T) {
	p, f := newPipelineFixture(t, false, []*ProcessResult{{Stdout: healthyReply}}, "a", "b", "c", "d", "e", "y")

	res, err := p.Run(context.Background(), "list files")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, res.Enhance.Outcome)
	assert.False(t, res.Dispatched())
	assert.Empty(t, f.shellRunner.calls())
}

func TestPipeline_NoExec(t *testing.T) {
	p, f := newPipelineFixture(t, true, []*ProcessResult{{Stdout: healthyReply}}, "y")

	res, err := p.Run(context.Background(), "list files")
	require.NoError(t, err)
	assert.True(t, res.Enhance.Task.IsConfirmed)
	assert.False(t, res.Dispatched())
	assert.Empty(t, f.shellRunner.calls())
}

func TestPipeline_FallbackTaskIsAudited(t *testing.T) {
	p, f := newPipelineFixture(t, false, []*ProcessResult{{TimedOut: true}}, "n")

	res, err := p.Run(context.Background(), "scan the network")
	require.NoError(t, err)
	assert.True(t, res.Resolution.Fallback)
	require.Len(t, f.audit.tasks, 1)
	assert.Equal(t, 2, f.audit.tasks[0].RetryCount)
	assert.Contains(t, f.out.String(), "fallback rule")
}

func TestPipeline_FallbackExhaustedIsReturned(t *testing.T) {
	p, f := newPipelineFixture(t, false, []*ProcessResult{{ExitCode: 1}})

	_, err := p.Run(context.Background(), "what is love")
	var fe *FallbackExhaustedError
	require.ErrorAs(t, err, &fe)
	assert.Empty(t, f.audit.tasks)
	assert.Equal(t, 1, f.events.count("pipeline.failed"))
}

func TestPipeline_ProtocolErrorRecovered(t *testing.T) {
	p, _ := newPipelineFixture(t, false, []*ProcessResult{
		{Stdout: "no keys here at all"},
		{Stdout: healthyReply},
	}, "y")

	res, err := p.Run(context.Background(), "list files")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolution.Task.RetryCount)
}

func TestPipeline_ValidationErrorDoesNotFailRun(t *testing.T) {
	reply := "TASK_TYPE: nmap\nEXPLANATION: scan something\nFILE: N/A"
	p, f := newPipelineFixture(t, false, []*ProcessResult{{Stdout: reply}}, "y")

	res, err := p.Run(context.Background(), "scan")
	require.NoError(t, err)
	var ve *ValidationError
	assert.True(t, errors.As(res.DispatchErr, &ve))
	assert.Contains(t, f.out.String(), "Skipped")
}

func TestPipeline_AuditFailureIsNotFatal(t *testing.T) {
	p, f := newPipelineFixture(t, false, []*ProcessResult{{Stdout: healthyReply}}, "y")
	f.audit.err = errors.New("disk full")

	res, err := p.Run(context.Background(), "list files")
	require.NoError(t, err)
	assert.NotNil(t, res.Dispatch)
}
