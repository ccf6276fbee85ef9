// Package desk runs the exchange conversation: it turns inbound chat events
// into collected order details, offers, orders and settlement confirmations.
package desk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/wakala/exchangedesk/internal/console"
	"github.com/wakala/exchangedesk/internal/dispatch"
	"github.com/wakala/exchangedesk/internal/domain"
	"github.com/wakala/exchangedesk/internal/events"
	"github.com/wakala/exchangedesk/internal/extract"
	"github.com/wakala/exchangedesk/internal/gateway"
	"github.com/wakala/exchangedesk/internal/pricing"
	"github.com/wakala/exchangedesk/internal/prompt"
	"github.com/wakala/exchangedesk/internal/rates"
	"github.com/wakala/exchangedesk/internal/repository"
	"github.com/wakala/exchangedesk/internal/session"
)

const (
	DefaultAdminMagic  = "op:desk"
	DefaultSignature   = "@BitcoinOperator"
	DefaultExplorerURL = "https://blockchair.com/dash/transaction"
)

type Options struct {
	AdminMagic  string
	AllowGroups bool
	Signature   string
	ExplorerURL string
}

// Deps are the collaborators of a Desk. Now and Reference default to the
// wall clock and a random 32-byte hex string.
type Deps struct {
	Store     *repository.Store
	Sessions  *session.Store
	Prompts   *prompt.Scheduler
	Console   *console.Console
	Messenger *gateway.Safe
	Rates     *rates.Resolver
	Events    events.Publisher
	Submitter dispatch.Submitter
	Pacer     Pacer
	Logger    *slog.Logger
	Now       func() time.Time
	Reference func() string
}

type Desk struct {
	opts Options
	Deps
}

func New(opts Options, d Deps) *Desk {
	if opts.AdminMagic == "" {
		opts.AdminMagic = DefaultAdminMagic
	}
	if opts.Signature == "" {
		opts.Signature = DefaultSignature
	}
	if opts.ExplorerURL == "" {
		opts.ExplorerURL = DefaultExplorerURL
	}
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Pacer == nil {
		d.Pacer = NoPacer{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Reference == nil {
		d.Reference = randomReference
	}
	d.Logger = d.Logger.With("component", "desk")
	return &Desk{opts: opts, Deps: d}
}

// HandleEvent filters ev and queues it on the sender's mailbox.
func (d *Desk) HandleEvent(ev domain.InboundEvent) error {
	if ev.IsOutgoing {
		return nil
	}
	if !ev.IsPrivate && !d.opts.AllowGroups {
		return nil
	}
	return d.Submitter.Submit(ev.CorrespondentID, func(ctx context.Context) {
		d.Handle(ctx, ev)
	})
}

// Handle processes one event. It must run in the sender's mailbox.
func (d *Desk) Handle(ctx context.Context, ev domain.InboundEvent) {
	switch {
	case ev.Attachment != nil:
		d.handleAttachment(ctx, ev)
	case ev.Text != "":
		if console.IsCommand(ev.Text) && d.isAdmin(ctx, ev.CorrespondentID) {
			d.Messenger.SendText(ctx, ev.ChatID, d.Console.Execute(ctx, ev.Text))
			return
		}
		d.handleText(ctx, ev)
	}
}

func (d *Desk) isAdmin(ctx context.Context, id int64) bool {
	ok, err := d.Store.Admins.IsAdmin(ctx, id)
	if err != nil {
		d.Logger.Error("admin lookup failed", "correspondent_id", id, "error", err)
		return false
	}
	return ok
}

func (d *Desk) handleText(ctx context.Context, ev domain.InboundEvent) {
	id, chat := ev.CorrespondentID, ev.ChatID
	text := strings.TrimSpace(ev.Text)
	sess := d.Sessions.Get(id)

	if text == d.opts.AdminMagic && ev.IsPrivate {
		if err := d.Store.Admins.Add(ctx, id); err != nil {
			d.Logger.Error("admin enrollment failed", "correspondent_id", id, "error", err)
			return
		}
		d.Logger.Info("admin enrolled", "correspondent_id", id)
		return
	}

	sess.Locale = extract.DetectLocale(text)
	if err := d.Store.Users.SetLocale(ctx, id, sess.Locale); err != nil {
		d.Logger.Error("store locale failed", "correspondent_id", id, "error", err)
	}
	lx := lexicon(sess.Locale)

	due, err := d.Store.Users.TouchGreeting(ctx, id, d.Now())
	if err != nil {
		d.Logger.Error("greeting lookup failed", "correspondent_id", id, "error", err)
	}
	if due && !sess.Greeted {
		d.Messenger.SendText(ctx, chat, lx.Greet)
		sess.Greeted = true
	}

	if sess.PendingConfirmation {
		switch {
		case extract.IsYes(text):
			sess.Resolve(true)
		case extract.IsNo(text):
			sess.Resolve(false)
		default:
			d.Messenger.SendText(ctx, chat, lx.ConfirmUSDRetry)
			return
		}
	}

	if addr, ok := extract.Address(text); ok {
		sess.Address = addr
		if sess.Mode == domain.ModeUnset && !sess.AskedAmount {
			d.Prompts.Arm(sess, d.amountPrompt(chat))
		}
	}

	amt := extract.ParseAmount(text, sess.Address)
	switch amt.Mode {
	case domain.ModeUSD:
		sess.CommitUSD(amt.Value)
	case domain.ModeAMD:
		if extract.Ambiguous(amt.Value) {
			sess.AwaitConfirmation(amt.Value)
			d.Messenger.SendText(ctx, chat, lx.ConfirmUSD)
			return
		}
		sess.CommitAMD(amt.Value)
	}

	if sess.Address == "" {
		if !sess.AskedAddress {
			d.Messenger.SendText(ctx, chat, lx.AskAddress)
			sess.AskedAddress = true
		}
		return
	}
	if sess.Mode == domain.ModeUnset {
		if !sess.AskedAmount && !prompt.Pending(sess) {
			d.Messenger.SendText(ctx, chat, lx.AskAmount)
			sess.AskedAmount = true
		}
		return
	}

	d.placeOrder(ctx, chat, sess)
}

func (d *Desk) amountPrompt(chat int64) prompt.FireFunc {
	return func(ctx context.Context, sess *session.Session) {
		d.Messenger.SendText(ctx, chat, lexicon(sess.Locale).AskAmount)
	}
}

// placeOrder quotes the collected amount, sends the offer and records the
// order. Storage failures abandon the turn without a reply.
func (d *Desk) placeOrder(ctx context.Context, chat int64, sess *session.Session) {
	id := sess.CorrespondentID
	settings, err := d.Store.Settings.Load(ctx)
	if err != nil {
		d.Logger.Error("load settings failed", "correspondent_id", id, "error", err)
		return
	}
	tiers, err := d.Store.Tiers.List(ctx)
	if err != nil {
		d.Logger.Error("load pricing tiers failed", "correspondent_id", id, "error", err)
		return
	}
	methods, err := d.Store.PayMethods.ListEnabled(ctx)
	if err != nil {
		d.Logger.Warn("load payment methods failed, using built-in ones", "error", err)
		methods = nil
	}

	engine := pricing.NewEngine(settings, tiers)
	var q pricing.Quote
	if sess.Mode == domain.ModeUSD {
		q = engine.FromUSD(sess.AmountUSD)
	} else {
		q = engine.FromAMDTarget(sess.AmountAMD)
	}

	d.typing(ctx, chat)
	d.Messenger.SendText(ctx, chat, FormatOffer(sess.Locale, q, methods))

	order := domain.Order{
		CorrespondentID: id,
		Status:          domain.OrderWaitingPayment,
		CreatedAt:       d.Now(),
		Payload: domain.OrderPayload{
			Locale:     sess.Locale,
			Mode:       q.Mode,
			USDAmount:  q.USD,
			USDAMD:     q.Rate,
			FeeMult:    q.Fee.Mult,
			FixedAMD:   q.Fee.Fixed,
			TotalAMD:   q.TotalAMD,
			WalletAddr: sess.Address,
		},
	}
	order.ID, err = d.Store.Orders.Create(ctx, id, order.Payload, order.CreatedAt)
	if err != nil {
		d.Logger.Error("create order failed", "correspondent_id", id, "error", err)
		return
	}
	sess.ActiveOrderID = order.ID
	d.Logger.Info("order created", "order_id", order.ID, "correspondent_id", id,
		"mode", q.Mode, "total_amd", q.TotalAMD)

	notice := FormatAdminNotice(order)
	for _, admin := range d.admins(ctx) {
		d.Messenger.SendText(ctx, admin, notice)
	}
	d.publish(ctx, events.RoutingOrderCreated, events.NewOrderCreated(order))

	sess.ResetCollection()
}

// handleAttachment treats an attachment as a payment receipt for the
// sender's pending order.
func (d *Desk) handleAttachment(ctx context.Context, ev domain.InboundEvent) {
	id, chat := ev.CorrespondentID, ev.ChatID
	sess := d.Sessions.Get(id)

	orderID := sess.ReceiptOrderID()
	if orderID == 0 {
		var err error
		orderID, err = d.Store.Orders.LatestWaiting(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			d.Logger.Debug("attachment without pending order ignored", "correspondent_id", id)
			return
		}
		if err != nil {
			d.Logger.Error("locate pending order failed", "correspondent_id", id, "error", err)
			return
		}
	}

	key := ev.DedupKey()
	existed, err := d.Store.Receipts.Register(ctx, id, orderID, key, d.Now())
	if err != nil {
		d.Logger.Error("register receipt failed", "correspondent_id", id, "order_id", orderID, "error", err)
		return
	}

	locale, err := d.Store.Users.Locale(ctx, id)
	if err != nil {
		d.Logger.Warn("load locale failed", "correspondent_id", id, "error", err)
	}
	lx := lexicon(locale)

	if existed {
		d.Messenger.SendText(ctx, chat, lx.DuplicateReceipt)
		return
	}

	order, err := d.Store.Orders.Get(ctx, orderID)
	if err != nil {
		d.Logger.Error("load order failed", "order_id", orderID, "error", err)
		return
	}
	if order.Status == domain.OrderApproved {
		d.Logger.Info("receipt for approved order ignored", "order_id", orderID, "receipt_key", key)
		return
	}

	d.Messenger.SendText(ctx, chat, lx.AfterReceipt1)
	sleep(ctx, d.Pacer.ReplyDelay())
	d.Messenger.SendText(ctx, chat, lx.AfterReceipt2)
	sleep(ctx, d.Pacer.ReplyDelay())

	settings, err := d.Store.Settings.Load(ctx)
	if err != nil {
		d.Logger.Warn("load settings failed, using defaults", "error", err)
	}
	dash := d.Rates.DashUSD(ctx, settings.DashUSD)
	now := d.Now()

	st := NewSettlement(order.Payload, settings.USDAMD, dash, now.In(settings.Location()))
	st.Signature = d.opts.Signature
	st.ExplorerURL = d.opts.ExplorerURL
	st.Reference = d.Reference()

	d.typing(ctx, chat)
	d.Messenger.SendText(ctx, chat, st.String())

	if err := d.Store.Orders.MarkApproved(ctx, orderID, key); err != nil {
		d.Logger.Error("approve order failed", "order_id", orderID, "error", err)
	} else {
		d.Logger.Info("order approved", "order_id", orderID, "correspondent_id", id, "receipt_key", key)
		d.publish(ctx, events.RoutingOrderApproved, events.NewOrderApproved(orderID, id, key, now))
	}

	for _, admin := range d.admins(ctx) {
		d.Messenger.Forward(ctx, admin, ev)
	}
	sess.CloseOrder()
}

func (d *Desk) admins(ctx context.Context) []int64 {
	ids, err := d.Store.Admins.List(ctx)
	if err != nil {
		d.Logger.Error("list admins failed", "error", err)
		return nil
	}
	return ids
}

func (d *Desk) typing(ctx context.Context, chat int64) {
	dur := d.Pacer.TypingDelay()
	d.Messenger.SendTyping(ctx, chat, dur)
	sleep(ctx, dur)
}

func (d *Desk) publish(ctx context.Context, key string, ev any) {
	if err := d.Events.Publish(ctx, key, ev); err != nil {
		d.Logger.Warn("publish event failed", "routing_key", key, "error", err)
	}
}

func randomReference() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", 64)
	}
	return hex.EncodeToString(b)
}
