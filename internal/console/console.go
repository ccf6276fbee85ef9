// Package console implements the operator command grammar. Commands arrive
// as plain chat messages from admin principals and are answered with plain
// text.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/wakala/exchangedesk/internal/domain"
	"github.com/wakala/exchangedesk/internal/repository"
)

// Help is the reply to any unrecognized command.
const Help = "Admin console:\n" +
	"- set usd amd <float>\n" +
	"- set dash usd <float>\n" +
	"- set tz offset <float>\n" +
	"- set tz label <str>\n" +
	"- rule add <min_usd> <max_usd|*> <fee_mult> <fixed_amd>\n" +
	"- rule list | rule del <id>\n" +
	"- pm add <label> -> <value>\n" +
	"- pm list | pm enable <id> | pm disable <id> | pm del <id>\n" +
	"- pm icon <id> <emoji> | pm order <id> <int>\n"

var verbs = []string{"set ", "rule ", "pm "}

// IsCommand reports whether text starts with a console verb.
func IsCommand(text string) bool {
	lower := strings.ToLower(text)
	for _, v := range verbs {
		if strings.HasPrefix(lower, v) {
			return true
		}
	}
	return false
}

type handler func(ctx context.Context, c *Console, m []string) (string, error)

type command struct {
	re *regexp.Regexp
	fn handler
}

// commands are matched in order against the trimmed message.
var commands = []command{
	{regexp.MustCompile(`(?i)^set\s+usd\s+amd\s+([0-9.]+)\s*$`), setter(domain.SettingUSDAMD)},
	{regexp.MustCompile(`(?i)^set\s+dash\s+usd\s+([0-9.]+)\s*$`), setter(domain.SettingDashUSD)},
	{regexp.MustCompile(`(?i)^set\s+tz\s+offset\s+(-?\d+(?:\.\d+)?)\s*$`), setter(domain.SettingTZOffsetHours)},
	{regexp.MustCompile(`(?i)^set\s+tz\s+label\s+(.+)$`), setter(domain.SettingTZLabel)},
	{regexp.MustCompile(`(?i)^rule\s+add\s+([0-9.]+)\s+(\*|[0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s*$`), ruleAdd},
	{regexp.MustCompile(`(?i)^rule\s+list\s*$`), ruleList},
	{regexp.MustCompile(`(?i)^rule\s+del\s+(\d+)\s*$`), ruleDel},
	{regexp.MustCompile(`(?i)^pm\s+add\s+(.+?)\s+->\s+(.+)$`), pmAdd},
	{regexp.MustCompile(`(?i)^pm\s+list\s*$`), pmList},
	{regexp.MustCompile(`(?i)^pm\s+(enable|disable)\s+(\d+)\s*$`), pmToggle},
	{regexp.MustCompile(`(?i)^pm\s+del\s+(\d+)\s*$`), pmDel},
	{regexp.MustCompile(`(?i)^pm\s+icon\s+(\d+)\s+(.+)$`), pmIcon},
	{regexp.MustCompile(`(?i)^pm\s+order\s+(\d+)\s+(-?\d+)$`), pmOrder},
}

type Console struct {
	store  *repository.Store
	logger *slog.Logger
}

func New(store *repository.Store, logger *slog.Logger) *Console {
	return &Console{store: store, logger: logger.With("component", "console")}
}

// Execute runs one command and returns the reply. A command that fails
// validation or storage gets the help text, and the failure is logged.
func (c *Console) Execute(ctx context.Context, text string) string {
	t := strings.TrimSpace(text)
	for _, cmd := range commands {
		m := cmd.re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		reply, err := cmd.fn(ctx, c, m)
		if err != nil {
			c.logger.Warn("console command failed", "command", t, "error", err)
			return Help
		}
		return reply
	}
	return Help
}

func setter(key string) handler {
	return func(ctx context.Context, c *Console, m []string) (string, error) {
		v, err := c.store.Settings.Set(ctx, key, m[1])
		if err != nil {
			return "", err
		}
		return key + "=" + v, nil
	}
}

func ruleAdd(ctx context.Context, c *Console, m []string) (string, error) {
	var t domain.PricingTier
	var err error
	if t.MinUSD, err = strconv.ParseFloat(m[1], 64); err != nil {
		return "", err
	}
	if m[2] != "*" {
		hi, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return "", err
		}
		t.MaxUSD = &hi
	}
	if t.FeeMult, err = strconv.ParseFloat(m[3], 64); err != nil {
		return "", err
	}
	if t.FixedAMD, err = strconv.ParseFloat(m[4], 64); err != nil {
		return "", err
	}
	if _, err := c.store.Tiers.Add(ctx, t); err != nil {
		return "", err
	}
	return "rule added", nil
}

func ruleList(ctx context.Context, c *Console, _ []string) (string, error) {
	tiers, err := c.store.Tiers.List(ctx)
	if err != nil {
		return "", err
	}
	if len(tiers) == 0 {
		return "no rules", nil
	}
	lines := make([]string, 0, len(tiers))
	for _, t := range tiers {
		max := "*"
		if t.MaxUSD != nil {
			max = formatFloat(*t.MaxUSD)
		}
		lines = append(lines, fmt.Sprintf("#%d: %s..%s | mult=%s | fix=%s",
			t.ID, formatFloat(t.MinUSD), max, formatFloat(t.FeeMult), formatFloat(t.FixedAMD)))
	}
	return strings.Join(lines, "\n"), nil
}

func ruleDel(ctx context.Context, c *Console, m []string) (string, error) {
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", err
	}
	if err := c.store.Tiers.Delete(ctx, id); err != nil {
		return "", err
	}
	return "rule deleted", nil
}

func pmAdd(ctx context.Context, c *Console, m []string) (string, error) {
	label, value := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	if _, err := c.store.PayMethods.Add(ctx, label, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("pm added: %s -> %s", label, value), nil
}

func pmList(ctx context.Context, c *Console, _ []string) (string, error) {
	methods, err := c.store.PayMethods.List(ctx)
	if err != nil {
		return "", err
	}
	if len(methods) == 0 {
		return "no pay methods", nil
	}
	lines := make([]string, 0, len(methods))
	for _, pm := range methods {
		state := "off"
		if pm.Enabled {
			state = "on"
		}
		lines = append(lines, fmt.Sprintf("#%d [%s] %s -> %s (order=%d, icon=%s)",
			pm.ID, state, pm.Label, pm.Value, pm.SortOrder, pm.Icon))
	}
	return strings.Join(lines, "\n"), nil
}

func pmToggle(ctx context.Context, c *Console, m []string) (string, error) {
	on := strings.EqualFold(m[1], "enable")
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", err
	}
	if err := c.store.PayMethods.SetEnabled(ctx, id, on); err != nil {
		return "", err
	}
	state := "disabled"
	if on {
		state = "enabled"
	}
	return fmt.Sprintf("pm #%d %s", id, state), nil
}

func pmDel(ctx context.Context, c *Console, m []string) (string, error) {
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", err
	}
	if err := c.store.PayMethods.Delete(ctx, id); err != nil {
		return "", err
	}
	return "pm deleted", nil
}

func pmIcon(ctx context.Context, c *Console, m []string) (string, error) {
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", err
	}
	if err := c.store.PayMethods.SetIcon(ctx, id, strings.TrimSpace(m[2])); err != nil {
		return "", err
	}
	return "pm icon updated", nil
}

func pmOrder(ctx context.Context, c *Console, m []string) (string, error) {
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", err
	}
	order, err := strconv.Atoi(m[2])
	if err != nil {
		return "", err
	}
	if err := c.store.PayMethods.SetSortOrder(ctx, id, order); err != nil {
		return "", err
	}
	return "pm order updated", nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
