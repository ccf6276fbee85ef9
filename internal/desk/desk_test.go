package desk

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/exchangedesk/internal/console"
	"github.com/wakala/exchangedesk/internal/dispatch"
	"github.com/wakala/exchangedesk/internal/domain"
	"github.com/wakala/exchangedesk/internal/events"
	"github.com/wakala/exchangedesk/internal/gateway"
	"github.com/wakala/exchangedesk/internal/prompt"
	"github.com/wakala/exchangedesk/internal/rates"
	"github.com/wakala/exchangedesk/internal/repository"
	"github.com/wakala/exchangedesk/internal/session"
)

const (
	testAddress = "XcPFMpA7vd4nZqKmLsT9wRbE2hJ6yUfGk3"
	testAdmin   = int64(7)
	customer    = int64(100)
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	Kind   string
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string) error {
	f.record(call{Kind: "text", ChatID: chatID, Text: text})
	return nil
}

func (f *fakeMessenger) SendTyping(_ context.Context, chatID int64, _ time.Duration) error {
	f.record(call{Kind: "typing", ChatID: chatID})
	return nil
}

func (f *fakeMessenger) Forward(_ context.Context, chatID int64, ev domain.InboundEvent) error {
	f.record(call{Kind: "forward", ChatID: chatID, Text: ev.DedupKey()})
	return nil
}

func (f *fakeMessenger) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

// texts returns the texts sent to chatID, oldest first.
func (f *fakeMessenger) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Kind == "text" && c.ChatID == chatID {
			out = append(out, c.Text)
		}
	}
	return out
}

func (f *fakeMessenger) count(kind string, chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Kind == kind && c.ChatID == chatID {
			n++
		}
	}
	return n
}

func (f *fakeMessenger) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

type fakeRate struct {
	price float64
	err   error
}

func (f *fakeRate) DashUSD(context.Context) (float64, error) { return f.price, f.err }

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() {}

type fakeTimers struct {
	funcs []func()
}

func (f *fakeTimers) AfterFunc(_ time.Duration, fn func()) { f.funcs = append(f.funcs, fn) }

func (f *fakeTimers) fireAll() {
	for _, fn := range f.funcs {
		fn()
	}
	f.funcs = nil
}

type harness struct {
	desk     *Desk
	store    *repository.Store
	sessions *session.Store
	msgs     *fakeMessenger
	rate     *fakeRate
	pub      *recordingPublisher
	timers   *fakeTimers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := repository.NewStore(db)
	require.NoError(t, store.Seed(context.Background(), []int64{testAdmin}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return t0 }
	h := &harness{
		store:    store,
		sessions: session.NewStore(now),
		msgs:     &fakeMessenger{},
		rate:     &fakeRate{price: 25},
		pub:      &recordingPublisher{},
		timers:   &fakeTimers{},
	}
	submit := dispatch.Inline{}
	h.desk = New(Options{}, Deps{
		Store:     store,
		Sessions:  h.sessions,
		Prompts:   prompt.New(h.sessions, submit, 9*time.Second, 11*time.Second, logger, prompt.WithTimer(h.timers.AfterFunc)),
		Console:   console.New(store, logger),
		Messenger: gateway.NewSafe(h.msgs, logger),
		Rates:     rates.NewResolver(h.rate, logger),
		Events:    h.pub,
		Submitter: submit,
		Logger:    logger,
		Now:       now,
		Reference: func() string { return strings.Repeat("ab", 32) },
	})
	return h
}

func (h *harness) text(t *testing.T, from int64, text string) {
	t.Helper()
	require.NoError(t, h.desk.HandleEvent(domain.InboundEvent{
		CorrespondentID: from, ChatID: from, IsPrivate: true, Text: text,
	}))
}

func (h *harness) photo(t *testing.T, from int64, msgID int64, stableID string) {
	t.Helper()
	require.NoError(t, h.desk.HandleEvent(domain.InboundEvent{
		CorrespondentID: from, ChatID: from, MessageID: msgID, IsPrivate: true,
		Attachment: &domain.Attachment{Kind: domain.AttachmentPhoto, StableID: stableID},
	}))
}

func TestAmbiguousAmountThenYesCreatesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.text(t, customer, testAddress+" 150")

	assert.Equal(t, []string{"Ողջույն 👋", "Սա դոլա՞ր է"}, h.msgs.texts(customer))
	sess, ok := h.sessions.Lookup(customer)
	require.True(t, ok)
	assert.True(t, sess.PendingConfirmation)
	assert.Equal(t, 150.0, sess.PendingAmount)
	assert.Equal(t, testAddress, sess.Address)
	assert.Equal(t, domain.ModeUnset, sess.Mode)

	h.msgs.reset()
	h.text(t, customer, "yes")

	texts := h.msgs.texts(customer)
	require.Len(t, texts, 1)
	offer := texts[0]
	assert.True(t, strings.HasPrefix(offer, "$150*408*1.05+100(փոխանցման վճար)= 💰\n\n64600դր⤵️\n\n"), offer)
	assert.Contains(t, offer, "🟢 EasyWallet: 093977960\n\n🟠 Telcell wallet: 098910502")
	assert.Equal(t, 1, h.msgs.count("typing", customer))

	order, err := h.store.Orders.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderWaitingPayment, order.Status)
	assert.Equal(t, domain.OrderPayload{
		Locale: domain.LocaleAM, Mode: domain.ModeUSD, USDAmount: 150,
		USDAMD: 408, FeeMult: 1.054, FixedAMD: 100, TotalAMD: 64600, WalletAddr: testAddress,
	}, order.Payload)

	assert.Equal(t,
		[]string{"🆕 #1 | uid 100 | mode=USD X=$150 → 64600 AMD | addr " + testAddress},
		h.msgs.texts(testAdmin))
	assert.Equal(t, []string{events.RoutingOrderCreated}, h.pub.keys)

	assert.False(t, sess.PendingConfirmation)
	assert.Equal(t, int64(1), sess.ActiveOrderID)
	assert.Empty(t, sess.Address)
	assert.Equal(t, domain.ModeUnset, sess.Mode)

	h.msgs.reset()
	h.timers.fireAll()
	assert.Empty(t, h.msgs.texts(customer), "prompt armed before the order must not fire")
}

func TestConfirmationRetryAndNo(t *testing.T) {
	h := newHarness(t)

	h.text(t, customer, testAddress+" 300")
	h.msgs.reset()

	h.text(t, customer, "может быть")
	assert.Equal(t, []string{"Уточните, это USD?"}, h.msgs.texts(customer))

	h.msgs.reset()
	h.text(t, customer, "нет")
	texts := h.msgs.texts(customer)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "\n\n400 AMD ⤵️\n\n")

	order, err := h.store.Orders.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeAMD, order.Payload.Mode)
	assert.Equal(t, int64(400), order.Payload.TotalAMD)
	assert.Equal(t, domain.LocaleRU, order.Payload.Locale)
}

func TestLargeAMDAsksForAddressFirst(t *testing.T) {
	h := newHarness(t)

	h.text(t, customer, "50000 drams")
	assert.Equal(t, []string{"Ողջույն 👋", "Ի՞նչ գործարք է հարկավոր 🌟"}, h.msgs.texts(customer))

	sess, _ := h.sessions.Lookup(customer)
	assert.Equal(t, domain.ModeAMD, sess.Mode)
	assert.Equal(t, 50000.0, sess.AmountAMD)

	h.msgs.reset()
	h.text(t, customer, "again")
	assert.Empty(t, h.msgs.texts(customer), "address is asked once")

	h.text(t, customer, testAddress)
	texts := h.msgs.texts(customer)
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "$122.55*408*1.05+100(փոխանցման վճար)= 💰\n\n52800դր⤵️"), texts[0])
	assert.Empty(t, h.timers.funcs, "no prompt once the amount is known")
}

func TestAddressOnlyArmsSilentPrompt(t *testing.T) {
	h := newHarness(t)

	h.text(t, customer, "привет "+testAddress)
	assert.Equal(t, []string{"Привет 👋 Какая операция нужна?"}, h.msgs.texts(customer))
	require.Len(t, h.timers.funcs, 1)

	h.msgs.reset()
	h.timers.fireAll()
	assert.Equal(t, []string{"💵 На какую сумму хотите пополнить?"}, h.msgs.texts(customer))

	h.msgs.reset()
	h.text(t, customer, "ну")
	assert.Empty(t, h.msgs.texts(customer), "amount is asked once")
}

func TestReceiptFinalizesOnceAndDeduplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.text(t, customer, testAddress+" $100")
	h.msgs.reset()

	h.photo(t, customer, 55, "p1")

	texts := h.msgs.texts(customer)
	require.Len(t, texts, 3)
	assert.Equal(t, "Հիմա ստուգենք 👾", texts[0])
	assert.Equal(t, "Ստացանք, հիմա կփոխանցենք ու կտրոնը կտրամադրենք 👾", texts[1])
	assert.Equal(t, strings.Join([]string{
		settlementRule,
		"To: " + testAddress,
		"Amount: 4.00000000 DASH ($100.00 / 40800 AMD)",
		"Time: 2026-03-01 16:00:00",
		"DASH rate: $25.00 (binance)",
		"Sent by @BitcoinOperator",
		settlementRule,
		"Transaction: https://blockchair.com/dash/transaction/" + strings.Repeat("ab", 32),
	}, "\n"), texts[2])
	assert.Equal(t, 1, h.msgs.count("forward", testAdmin))

	order, err := h.store.Orders.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderApproved, order.Status)
	assert.Equal(t, "photo:p1", order.ReceiptKey)
	assert.Equal(t, []string{events.RoutingOrderCreated, events.RoutingOrderApproved}, h.pub.keys)

	sess, _ := h.sessions.Lookup(customer)
	assert.Zero(t, sess.ActiveOrderID)
	assert.Equal(t, int64(1), sess.LastClosedOrderID)

	h.msgs.reset()
	h.photo(t, customer, 56, "p1")
	assert.Equal(t, []string{"Նույն կտրոնն եք ուղարկել 🧾"}, h.msgs.texts(customer))
	assert.Equal(t, 0, h.msgs.count("forward", testAdmin))
	assert.Len(t, h.pub.keys, 2)
}

func TestRateLookupFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.rate.err = context.DeadlineExceeded

	h.text(t, customer, testAddress+" 100$")
	h.msgs.reset()
	h.photo(t, customer, 55, "p1")

	texts := h.msgs.texts(customer)
	require.Len(t, texts, 3)
	assert.Contains(t, texts[2], "Amount: 1.62866450 DASH ($100.00 / 40800 AMD)")
	assert.Contains(t, texts[2], "DASH rate: $61.40 (binance)")
}

func TestReceiptAfterEvictionUsesLatestWaitingOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.store.Orders.Create(ctx, customer, domain.OrderPayload{
		Mode: domain.ModeUSD, USDAmount: 10, USDAMD: 400, WalletAddr: testAddress,
	}, t0)
	require.NoError(t, err)

	h.photo(t, customer, 9, "")
	order, err := h.store.Orders.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderApproved, order.Status)
	assert.Equal(t, "msg:9", order.ReceiptKey)
}

func TestAttachmentWithoutOrderIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.photo(t, customer, 1, "p1")
	assert.Empty(t, h.msgs.calls)
}

func TestAdminEnrollmentAndConsole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.text(t, 200, "set usd amd 1")
	s, err := h.store.Settings.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 408.0, s.USDAMD, "non-admins cannot run commands")

	h.msgs.reset()
	h.text(t, 200, "op:desk")
	assert.Empty(t, h.msgs.calls)
	ok, err := h.store.Admins.IsAdmin(ctx, 200)
	require.NoError(t, err)
	assert.True(t, ok)

	h.text(t, 200, "SET USD AMD 390")
	assert.Equal(t, []string{"usd_amd=390"}, h.msgs.texts(200))
}

func TestEnrollmentRequiresPrivateChat(t *testing.T) {
	h := newHarness(t)
	h.desk.opts.AllowGroups = true

	require.NoError(t, h.desk.HandleEvent(domain.InboundEvent{
		CorrespondentID: 200, ChatID: -5, IsPrivate: false, Text: "op:desk",
	}))
	ok, err := h.store.Admins.IsAdmin(context.Background(), 200)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutgoingAndGroupEventsIgnored(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.desk.HandleEvent(domain.InboundEvent{
		CorrespondentID: customer, ChatID: customer, IsPrivate: true, IsOutgoing: true, Text: "hi",
	}))
	require.NoError(t, h.desk.HandleEvent(domain.InboundEvent{
		CorrespondentID: customer, ChatID: -5, Text: "hi",
	}))
	assert.Empty(t, h.msgs.calls)
	assert.Equal(t, 0, h.sessions.Len())

	h.desk.opts.AllowGroups = true
	require.NoError(t, h.desk.HandleEvent(domain.InboundEvent{
		CorrespondentID: customer, ChatID: -5, Text: "hi",
	}))
	assert.NotEmpty(t, h.msgs.texts(-5))
}

func TestGreetingOncePerSession(t *testing.T) {
	h := newHarness(t)

	h.text(t, customer, "hi")
	h.text(t, customer, "hi again")
	texts := h.msgs.texts(customer)
	assert.Equal(t, 1, strings.Count(strings.Join(texts, "|"), "Ողջույն 👋"))
}
