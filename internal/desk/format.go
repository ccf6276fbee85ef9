package desk

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wakala/exchangedesk/internal/domain"
	"github.com/wakala/exchangedesk/internal/pricing"
)

const settlementRule = "…………………………………………………………."

// FormatOffer renders the offer sent once address and amount are known.
// Blocks are separated by blank lines.
func FormatOffer(l domain.Locale, q pricing.Quote, methods []domain.PaymentMethod) string {
	lx := lexicon(l)
	formula := fmt.Sprintf("$%s*%s*%s+%d(%s)= 💰",
		domain.FormatNumber(q.USD), domain.FormatNumber(q.Rate),
		domain.FormatNumber(q.Fee.Mult), int64(q.Fee.Fixed), lx.CommissionLabel)

	blocks := []string{formula, fmt.Sprintf(lx.SumLine, q.TotalAMD)}
	if len(methods) == 0 {
		methods = domain.FallbackPaymentMethods
	}
	for _, m := range methods {
		blocks = append(blocks, paymentLine(m))
	}
	blocks = append(blocks, lx.ReceiptLine, lx.AppsLine, lx.TerminalWarning)
	return strings.Join(blocks, "\n\n")
}

func paymentLine(m domain.PaymentMethod) string {
	icon := m.Icon
	if icon == "" {
		label := strings.ToLower(m.Label)
		switch {
		case strings.Contains(label, "easy"):
			icon = "🟢"
		case strings.Contains(label, "telcell"):
			icon = "🟠"
		default:
			icon = "💳"
		}
	}
	return fmt.Sprintf("%s %s: %s", icon, m.Label, m.Value)
}

// FormatAdminNotice is the one-line summary sent to admins for a new order.
func FormatAdminNotice(o domain.Order) string {
	p := o.Payload
	return fmt.Sprintf("🆕 #%d | uid %d | mode=%s X=$%s → %d AMD | addr %s",
		o.ID, o.CorrespondentID, p.Mode, domain.FormatNumber(p.USDAmount), p.TotalAMD, p.WalletAddr)
}

// Settlement is the data shown in a settlement confirmation.
type Settlement struct {
	Wallet      string
	USD         float64
	AMDNet      int64
	DashUSD     float64
	Time        time.Time
	Signature   string
	ExplorerURL string
	Reference   string
}

// NewSettlement derives the confirmation of an approved order. The AMD net
// uses the rate frozen on the order.
func NewSettlement(p domain.OrderPayload, fallbackRate, dashUSD float64, at time.Time) Settlement {
	rate := p.USDAMD
	if rate <= 0 {
		rate = fallbackRate
	}
	wallet := p.WalletAddr
	if wallet == "" {
		wallet = "—"
	}
	return Settlement{
		Wallet:  wallet,
		USD:     p.USDAmount,
		AMDNet:  pricing.RoundHalfUp(p.USDAmount * rate),
		DashUSD: dashUSD,
		Time:    at,
	}
}

// DashAmount is the USD amount expressed in DASH at the reference rate.
func (s Settlement) DashAmount() float64 {
	if s.DashUSD <= 0 {
		return 0
	}
	return s.USD / s.DashUSD
}

func (s Settlement) String() string {
	lines := []string{
		settlementRule,
		"To: " + s.Wallet,
		fmt.Sprintf("Amount: %.8f DASH ($%.2f / %d AMD)", s.DashAmount(), s.USD, s.AMDNet),
		"Time: " + s.Time.Format("2006-01-02 15:04:05"),
		"DASH rate: $" + strconv.FormatFloat(s.DashUSD, 'f', 2, 64) + " (binance)",
		"Sent by " + s.Signature,
		settlementRule,
		"Transaction: " + strings.TrimRight(s.ExplorerURL, "/") + "/" + s.Reference,
	}
	return strings.Join(lines, "\n")
}
