package console

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/exchangedesk/internal/repository"
)

func newTestConsole(t *testing.T) (*Console, *repository.Store) {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := repository.NewStore(db)
	require.NoError(t, store.Seed(context.Background(), nil))
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestIsCommand(t *testing.T) {
	for _, s := range []string{"set usd amd 400", "SET x", "Rule list", "pm list", "pm "} {
		assert.True(t, IsCommand(s), s)
	}
	for _, s := range []string{"settings", "rules", "hello", "", "pmlist", " set usd amd 1"} {
		assert.False(t, IsCommand(s), s)
	}
}

func TestSetCommands(t *testing.T) {
	c, store := newTestConsole(t)
	ctx := context.Background()

	tests := []struct {
		cmd, want string
	}{
		{"set usd amd 395.5", "usd_amd=395.5"},
		{"SET DASH USD 27.4", "dash_usd=27.4"},
		{"set tz offset -3.5", "tz_offset_hours=-3.5"},
		{"set tz label  Yerevan ", "tz_label=Yerevan"},
		{"set usd amd 0", Help},
		{"set usd amd 1.2.3", Help},
		{"set usd amd", Help},
		{"set tz offset 20", Help},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Execute(ctx, tt.cmd), tt.cmd)
	}

	s, err := store.Settings.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 395.5, s.USDAMD)
	assert.Equal(t, 27.4, s.DashUSD)
	assert.Equal(t, -3.5, s.TZOffsetHours)
	assert.Equal(t, "Yerevan", s.TZLabel)
}

func TestRuleCommands(t *testing.T) {
	c, _ := newTestConsole(t)
	ctx := context.Background()

	assert.Equal(t, "no rules", c.Execute(ctx, "rule list"))
	assert.Equal(t, "rule added", c.Execute(ctx, "rule add 500 * 1.03 0"))
	assert.Equal(t, "rule added", c.Execute(ctx, "rule add 0 499.99 1.06 200"))
	assert.Equal(t, Help, c.Execute(ctx, "rule add 0 x 1 1"))

	assert.Equal(t,
		"#2: 0..499.99 | mult=1.06 | fix=200\n#1: 500..* | mult=1.03 | fix=0",
		c.Execute(ctx, "rule list"))

	assert.Equal(t, "rule deleted", c.Execute(ctx, "rule del 2"))
	assert.Equal(t, "#1: 500..* | mult=1.03 | fix=0", c.Execute(ctx, "Rule List"))
}

func TestPayMethodCommands(t *testing.T) {
	c, store := newTestConsole(t)
	ctx := context.Background()

	assert.Equal(t, "pm added: Idram wallet -> 012 345", c.Execute(ctx, "pm add Idram wallet -> 012 345"))
	assert.Equal(t, "pm #1 disabled", c.Execute(ctx, "pm disable 1"))
	assert.Equal(t, "pm icon updated", c.Execute(ctx, "pm icon 3 🔵"))
	assert.Equal(t, "pm order updated", c.Execute(ctx, "pm order 3 -1"))

	assert.Equal(t,
		"#3 [on] Idram wallet -> 012 345 (order=-1, icon=🔵)\n"+
			"#1 [off] EasyWallet -> 093977960 (order=0, icon=🟢)\n"+
			"#2 [on] Telcell wallet -> 098910502 (order=1, icon=🟠)",
		c.Execute(ctx, "pm list"))

	assert.Equal(t, "pm #1 enabled", c.Execute(ctx, "PM ENABLE 1"))
	assert.Equal(t, "pm deleted", c.Execute(ctx, "pm del 2"))

	enabled, err := store.PayMethods.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "Idram wallet", enabled[0].Label)
}

func TestUnknownCommandPrintsHelp(t *testing.T) {
	c, _ := newTestConsole(t)
	for _, s := range []string{"set nothing", "rule frobnicate", "pm", "pm add nolabel"} {
		assert.Equal(t, Help, c.Execute(context.Background(), s), s)
	}
}
