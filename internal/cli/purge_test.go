package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabage/internal/registry"
)

func TestPurge_WithoutAllFlag_Errors(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag for safety")
}

func TestPurge_WithAllAndForce_Succeeds(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Install(ctx, sampleTabs(), registry.CaptureURL)
	require.NoError(t, err)

	settings := registry.DefaultSettings()
	settings.TabGoal = 5
	_, err = tr.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	cmd := &PurgeCommand{All: true, Force: true, globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, `Purged registry "default"`)

	state, err := tr.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Empty())
	assert.Equal(t, 0, state.Peak)
	assert.Empty(t, state.History)
	assert.Nil(t, state.InstalledAt)

	kept, err := tr.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, kept.TabGoal, "settings survive a purge")
}

func TestPurge_JSONOutput(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Install(ctx, sampleTabs(), registry.CaptureUnknown)
	require.NoError(t, err)

	cmd := &PurgeCommand{All: true, Force: true, globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, true, result["purged"])
	assert.Equal(t, "default", result["registry"])
}

func TestPurge_NeverStoredRegistry(t *testing.T) {
	tr := newTestTracker(t)

	cmd := &PurgeCommand{All: true, Force: true, globals: &GlobalFlags{}}
	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(context.Background(), tr))
	})
}

func TestPurge_Confirmation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "confirmed", input: "PURGE\n"},
		{name: "wrong text", input: "purge\n", wantErr: "confirmation text did not match"},
		{name: "no input", input: "", wantErr: "no input received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t)
			ctx := context.Background()
			_, err := tr.Install(ctx, sampleTabs(), registry.CaptureUnknown)
			require.NoError(t, err)

			cmd := &PurgeCommand{All: true, globals: &GlobalFlags{}, stdin: strings.NewReader(tt.input)}
			var runErr error
			output := captureOutput(t, func() {
				runErr = cmd.executeWithTracker(ctx, tr)
			})
			assert.Contains(t, output, `Type "PURGE" to confirm`)

			state, err := tr.State(ctx)
			require.NoError(t, err)
			if tt.wantErr != "" {
				require.Error(t, runErr)
				assert.Contains(t, runErr.Error(), tt.wantErr)
				assert.Equal(t, 3, state.Registry.Count, "aborted purge keeps data")
				return
			}
			require.NoError(t, runErr)
			assert.True(t, state.Empty())
		})
	}
}
