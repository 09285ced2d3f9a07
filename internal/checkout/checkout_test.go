package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
)

func validContact() Contact {
	return Contact{FirstName: "Eva", LastName: "Novak", Email: "eva@example.com", Phone: "+420111"}
}

func validAddress() Address {
	return Address{Street: "Main 1", City: "Brno", PostalCode: "60200"}
}

func zone(id string, price int64, threshold *int64) models.DeliveryZone {
	z := models.DeliveryZone{ID: id, Name: "Zone " + id, Price: decimal.NewFromInt(price), IsActive: true}
	if threshold != nil {
		z.FreeOverThreshold = decimal.NewNullDecimal(decimal.NewFromInt(*threshold))
	}
	return z
}

func int64p(v int64) *int64 { return &v }

func testReference() Reference {
	return Reference{
		Zones:   []models.DeliveryZone{zone("center", 100, int64p(1000)), zone("suburbs", 150, int64p(1500)), zone("region", 250, nil)},
		Stores:  []models.PickupStore{{ID: "main", Name: "Flower House", Address: "5 Oak", City: "Brno", PostalCode: "60200"}},
		Methods: []models.PaymentMethod{{ID: "cash", Name: "Cash on delivery"}},
	}
}

// cartWithA holds one line {productId:"A", unitPrice:500, quantity:2}.
func cartWithA(t *testing.T) (*cart.Store, *cart.MemoryPersister) {
	t.Helper()
	persister := cart.NewMemoryPersister([]byte(`[{"productId":"A","name":"Bouquet A","unitPrice":500,"quantity":2}]`))
	store, err := cart.Open(context.Background(), persister, nil)
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	return store, persister
}

// fakeGateway stores one order per submission key, like the orders service.
type fakeGateway struct {
	mu     sync.Mutex
	err    error
	calls  int
	orders []*models.Order
	byKey  map[string]uuid.UUID
}

func (g *fakeGateway) PlaceOrder(_ context.Context, order *models.Order) (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return uuid.Nil, g.err
	}
	if id, ok := g.byKey[order.SubmissionKey]; ok {
		return id, nil
	}
	if g.byKey == nil {
		g.byKey = map[string]uuid.UUID{}
	}
	id := uuid.New()
	g.byKey[order.SubmissionKey] = id
	g.orders = append(g.orders, order)
	return id, nil
}

func readyForPayment(t *testing.T, w *Wizard) {
	t.Helper()
	ctx := context.Background()
	if err := w.UpdateContact(validContact()); err != nil {
		t.Fatalf("contact: %v", err)
	}
	if err := w.UpdateAddress(validAddress()); err != nil {
		t.Fatalf("address: %v", err)
	}
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("advance contact: %v", err)
	}
	if err := w.SelectZone("center"); err != nil {
		t.Fatalf("zone: %v", err)
	}
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("advance delivery: %v", err)
	}
	if err := w.SelectPaymentMethod("cash"); err != nil {
		t.Fatalf("payment: %v", err)
	}
}

func TestContactAdvanceRequiresTrimmedFields(t *testing.T) {
	ref := testReference()
	base := Draft{Contact: validContact(), Address: validAddress(), Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery}}

	if next, err := Advance(StageContact, base, ref); err != nil || next != StageDelivery {
		t.Fatalf("complete contact should advance, got %v %v", next, err)
	}

	blankers := []func(d *Draft){
		func(d *Draft) { d.Contact.FirstName = "   " },
		func(d *Draft) { d.Contact.LastName = "" },
		func(d *Draft) { d.Contact.Email = "\t" },
		func(d *Draft) { d.Contact.Phone = " " },
		func(d *Draft) { d.Address.Street = "" },
		func(d *Draft) { d.Address.City = "  " },
		func(d *Draft) { d.Address.PostalCode = "" },
	}
	for i, blankField := range blankers {
		d := base
		blankField(&d)
		next, err := Advance(StageContact, d, ref)
		if next != StageContact || !errors.Is(err, ErrAdvanceRejected) {
			t.Fatalf("case %d: expected rejection, got %v %v", i, next, err)
		}
	}
}

func TestContactIgnoresAddressForPickup(t *testing.T) {
	d := Draft{Contact: validContact(), Fulfillment: Fulfillment{Type: enums.FulfillmentPickup}}
	if !ContactValid(d) {
		t.Fatal("pickup contact must not require an address")
	}
	d.Fulfillment.Type = ""
	if ContactValid(d) {
		t.Fatal("unset fulfillment defaults to delivery and requires an address")
	}
}

func TestValidateStageReportsFields(t *testing.T) {
	err := ValidateStage(StageContact, Draft{Contact: Contact{FirstName: "Eva"}, Fulfillment: Fulfillment{Type: enums.FulfillmentPickup}}, Reference{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details := typed.Details().(map[string]any)
	fields := details["fields"].(FieldErrors)
	if len(fields) != 3 || fields["contact.email"] != "required" {
		t.Fatalf("unexpected field errors %v", fields)
	}
	if ValidateStage(StageConfirmation, Draft{}, Reference{}) != nil {
		t.Fatal("confirmation has no predicate")
	}
}

func TestDeliveryPredicate(t *testing.T) {
	ref := testReference()
	if DeliveryValid(Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery}}, ref) {
		t.Fatal("delivery without zone must be invalid")
	}
	if !DeliveryValid(Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery, ZoneID: "center"}}, ref) {
		t.Fatal("delivery with zone must be valid")
	}
	if DeliveryValid(Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentPickup}}, ref) {
		t.Fatal("pickup without store must be invalid while stores exist")
	}
	if !DeliveryValid(Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentPickup, StoreID: "main"}}, ref) {
		t.Fatal("pickup with store must be valid")
	}
	if DeliveryValid(Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery}}, Reference{}) {
		t.Fatal("delivery with no zones configured cannot be validated")
	}
}

func TestPickupWithNoStoresPassesVacuously(t *testing.T) {
	d := Draft{Contact: validContact(), Fulfillment: Fulfillment{Type: enums.FulfillmentPickup}}
	if !StageValid(StageDelivery, d, Reference{}) {
		t.Fatal("pickup with zero stores should pass the delivery stage")
	}
	next, err := Advance(StageDelivery, d, Reference{})
	if err != nil || next != StagePayment {
		t.Fatalf("expected advance to payment, got %v %v", next, err)
	}
}

func TestPickupDeliveryPriceIsZero(t *testing.T) {
	ref := testReference()
	for _, zoneID := range []string{"", "center", "region", "missing"} {
		d := Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentPickup, ZoneID: zoneID}}
		if price := DeliveryPrice(d, ref, decimal.NewFromInt(10)); !price.IsZero() {
			t.Fatalf("pickup with zone %q should be free, got %s", zoneID, price)
		}
	}
}

func TestDeliveryPriceThreshold(t *testing.T) {
	ref := testReference()
	d := Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery, ZoneID: "center"}}

	cases := []struct {
		cartTotal string
		want      int64
	}{
		{"999.99", 100},
		{"1000", 0},
		{"1000.01", 0},
		{"0", 100},
	}
	for _, tc := range cases {
		got := DeliveryPrice(d, ref, decimal.RequireFromString(tc.cartTotal))
		if !got.Equal(decimal.NewFromInt(tc.want)) {
			t.Fatalf("cart total %s: expected %d, got %s", tc.cartTotal, tc.want, got)
		}
	}

	d.Fulfillment.ZoneID = "region"
	if got := DeliveryPrice(d, ref, decimal.NewFromInt(1_000_000)); !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("zone without threshold always charges, got %s", got)
	}
	d.Fulfillment.ZoneID = ""
	if got := DeliveryPrice(d, ref, decimal.NewFromInt(5)); !got.IsZero() {
		t.Fatalf("no zone selected should price at zero, got %s", got)
	}
	d.Fulfillment.ZoneID = "gone"
	if got := DeliveryPrice(d, ref, decimal.NewFromInt(5)); !got.IsZero() {
		t.Fatalf("unknown zone should price at zero, got %s", got)
	}
}

func TestEndToEndTotals(t *testing.T) {
	store, _ := cartWithA(t)
	ref := testReference()
	cartTotal := store.Total()
	if !cartTotal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected cart total 1000, got %s", cartTotal)
	}

	free := Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery, ZoneID: "center"}}
	if price := DeliveryPrice(free, ref, cartTotal); !price.IsZero() {
		t.Fatalf("expected free delivery, got %s", price)
	}
	if total := GrandTotal(free, ref, cartTotal); !total.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected grand total 1000, got %s", total)
	}

	paid := Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery, ZoneID: "suburbs"}}
	if price := DeliveryPrice(paid, ref, cartTotal); !price.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected delivery 150, got %s", price)
	}
	if total := GrandTotal(paid, ref, cartTotal); !total.Equal(decimal.NewFromInt(1150)) {
		t.Fatalf("expected grand total 1150, got %s", total)
	}
}

func TestRetreat(t *testing.T) {
	if prev, err := Retreat(StagePayment); err != nil || prev != StageDelivery {
		t.Fatalf("payment should retreat to delivery, got %v %v", prev, err)
	}
	if _, err := Retreat(StageContact); !errors.Is(err, ErrLeaveToCart) {
		t.Fatalf("contact should leave to cart, got %v", err)
	}
	if _, err := Retreat(StageConfirmation); !errors.Is(err, ErrCheckoutComplete) {
		t.Fatalf("confirmation is terminal, got %v", err)
	}
	if _, err := Advance(StagePayment, Draft{}, Reference{}); !errors.Is(err, ErrSubmitRequired) {
		t.Fatalf("payment advances only by submission, got %v", err)
	}
}

func TestBeginRequiresCart(t *testing.T) {
	empty, err := cart.Open(context.Background(), cart.NewMemoryPersister(nil), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := Begin(context.Background(), uuid.NewString(), empty, testReference(), &fakeGateway{}, nil); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestBackKeepsDraft(t *testing.T) {
	store, _ := cartWithA(t)
	w, err := Begin(context.Background(), uuid.NewString(), store, testReference(), &fakeGateway{}, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	readyForPayment(t, w)
	before := w.Draft()
	if err := w.Back(context.Background()); err != nil {
		t.Fatalf("back: %v", err)
	}
	if err := w.Back(context.Background()); err != nil {
		t.Fatalf("back: %v", err)
	}
	if w.Stage() != StageContact {
		t.Fatalf("expected contact stage, got %v", w.Stage())
	}
	if w.Draft() != before {
		t.Fatalf("draft changed while moving back: %+v vs %+v", w.Draft(), before)
	}
}

func TestTransitionsRecheckCart(t *testing.T) {
	store, _ := cartWithA(t)
	w, _ := Begin(context.Background(), uuid.NewString(), store, testReference(), &fakeGateway{}, nil)
	_ = w.UpdateContact(validContact())
	_ = w.UpdateAddress(validAddress())
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := w.Advance(context.Background()); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestFulfillmentSwitchClearsOtherSelection(t *testing.T) {
	store, _ := cartWithA(t)
	w, _ := Begin(context.Background(), uuid.NewString(), store, testReference(), &fakeGateway{}, nil)

	if err := w.SelectZone("center"); err != nil {
		t.Fatalf("select zone: %v", err)
	}
	if err := w.SetFulfillment(enums.FulfillmentPickup); err != nil {
		t.Fatalf("set pickup: %v", err)
	}
	if d := w.Draft(); d.Fulfillment.ZoneID != "" {
		t.Fatalf("zone should be cleared, got %+v", d.Fulfillment)
	}
	if err := w.SelectStore("main"); err != nil {
		t.Fatalf("select store: %v", err)
	}
	if err := w.SelectZone("region"); err != nil {
		t.Fatalf("select zone: %v", err)
	}
	d := w.Draft()
	if d.Fulfillment.StoreID != "" || d.Fulfillment.Type != enums.FulfillmentDelivery {
		t.Fatalf("zone selection should switch to delivery, got %+v", d.Fulfillment)
	}
	if err := w.SelectZone("atlantis"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("unknown zone should be rejected, got %v", err)
	}
	if err := w.SetFulfillment("drone"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("unknown fulfillment should be rejected, got %v", err)
	}
}

func TestSubmitSuccessClearsCartAndConfirms(t *testing.T) {
	store, persister := cartWithA(t)
	gateway := &fakeGateway{}
	sessionID := uuid.NewString()
	w, _ := Begin(context.Background(), sessionID, store, testReference(), gateway, nil)
	readyForPayment(t, w)

	id, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.Stage() != StageConfirmation {
		t.Fatalf("expected confirmation, got %v", w.Stage())
	}
	if !store.IsEmpty() || string(persister.Bytes()) != "[]" {
		t.Fatalf("cart should be cleared, got %s", persister.Bytes())
	}
	state := w.State()
	if state.OrderID == nil || *state.OrderID != id {
		t.Fatalf("order id not recorded: %+v", state)
	}

	if len(gateway.orders) != 1 {
		t.Fatalf("expected one order, got %d", len(gateway.orders))
	}
	order := gateway.orders[0]
	if order.SubmissionKey != sessionID || order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("unexpected order header %+v", order)
	}
	if !order.TotalPrice.Equal(decimal.NewFromInt(1000)) || !order.Delivery.Price.IsZero() {
		t.Fatalf("unexpected totals %s / %s", order.TotalPrice, order.Delivery.Price)
	}
	if order.Delivery.ZoneName != "Zone center" || order.Payment.MethodName != "Cash on delivery" {
		t.Fatalf("reference names not copied: %+v %+v", order.Delivery, order.Payment)
	}
	if order.ShippingAddress == nil || order.PickupStore != nil {
		t.Fatalf("delivery order must carry only an address")
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", order.Items)
	}

	if err := w.UpdateContact(Contact{}); !errors.Is(err, ErrDraftLocked) {
		t.Fatalf("draft must be locked after submission, got %v", err)
	}
	if _, err := w.Submit(context.Background()); !errors.Is(err, ErrCheckoutComplete) {
		t.Fatalf("second submit must be refused, got %v", err)
	}
}

func TestSubmitFailureLeavesEverythingIntact(t *testing.T) {
	store, persister := cartWithA(t)
	before := string(persister.Bytes())
	gateway := &fakeGateway{err: errors.New("connection refused")}
	w, _ := Begin(context.Background(), uuid.NewString(), store, testReference(), gateway, nil)
	readyForPayment(t, w)
	draft := w.Draft()

	_, err := w.Submit(context.Background())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if w.Stage() != StagePayment {
		t.Fatalf("expected payment stage, got %v", w.Stage())
	}
	if store.ItemCount() != 2 || string(persister.Bytes()) != before {
		t.Fatalf("cart changed after failed submit")
	}
	if w.Draft() != draft {
		t.Fatal("draft changed after failed submit")
	}
	if w.State().OrderID != nil {
		t.Fatal("no order id expected")
	}

	gateway.err = nil
	if _, err := w.Submit(context.Background()); err != nil {
		t.Fatalf("manual retry should succeed: %v", err)
	}
}

func TestSubmitOnlyFromPayment(t *testing.T) {
	store, _ := cartWithA(t)
	w, _ := Begin(context.Background(), uuid.NewString(), store, testReference(), &fakeGateway{}, nil)
	if _, err := w.Submit(context.Background()); !errors.Is(err, ErrSubmitOutsidePayment) {
		t.Fatalf("expected refusal outside payment, got %v", err)
	}
}

func TestSubmitRevalidatesEarlierStages(t *testing.T) {
	store, _ := cartWithA(t)
	w, _ := Begin(context.Background(), uuid.NewString(), store, testReference(), &fakeGateway{}, nil)
	readyForPayment(t, w)
	_ = w.UpdateContact(Contact{FirstName: "Eva"})

	_, err := w.Submit(context.Background())
	if !errors.Is(err, ErrAdvanceRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

type blockingGateway struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) PlaceOrder(ctx context.Context, _ *models.Order) (uuid.UUID, error) {
	close(g.entered)
	<-g.release
	return uuid.New(), nil
}

func TestSubmitInFlightGuard(t *testing.T) {
	store, _ := cartWithA(t)
	gateway := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	w, _ := Begin(context.Background(), uuid.NewString(), store, testReference(), gateway, nil)
	readyForPayment(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()
	<-gateway.entered

	if _, err := w.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected in-flight refusal, got %v", err)
	}
	close(gateway.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
}

type flakyPersister struct {
	*cart.MemoryPersister
	failSave bool
}

func (p *flakyPersister) Save(ctx context.Context, data []byte) error {
	if p.failSave {
		return errors.New("storage unavailable")
	}
	return p.MemoryPersister.Save(ctx, data)
}

func TestCartClearFailureIsReconciled(t *testing.T) {
	ctx := context.Background()
	persister := &flakyPersister{MemoryPersister: cart.NewMemoryPersister([]byte(`[{"productId":"A","name":"A","unitPrice":500,"quantity":2}]`))}
	store, err := cart.Open(ctx, persister, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w, _ := Begin(ctx, uuid.NewString(), store, testReference(), &fakeGateway{}, nil)
	readyForPayment(t, w)

	persister.failSave = true
	if _, err := w.Submit(ctx); err != nil {
		t.Fatalf("submit should succeed even when clearing fails: %v", err)
	}
	state := w.State()
	if state.Stage != StageConfirmation || !state.CartClearPending {
		t.Fatalf("expected confirmation with pending clear, got %+v", state)
	}

	if err := w.Reconcile(ctx); err == nil {
		t.Fatal("reconcile should still fail while storage is down")
	}
	persister.failSave = false
	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if w.State().CartClearPending || !store.IsEmpty() {
		t.Fatal("cart should be cleared after reconcile")
	}
}

func TestReconcileKeepsItemsAddedAfterSubmit(t *testing.T) {
	ctx := context.Background()
	persister := &flakyPersister{MemoryPersister: cart.NewMemoryPersister([]byte(`[{"productId":"A","name":"A","unitPrice":500,"quantity":2}]`))}
	store, err := cart.Open(ctx, persister, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w, _ := Begin(ctx, uuid.NewString(), store, testReference(), &fakeGateway{}, nil)
	readyForPayment(t, w)

	persister.failSave = true
	if _, err := w.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := w.State().SubmittedLines; len(got) != 1 || got[0].ProductID != "A" || got[0].Quantity != 2 {
		t.Fatalf("submitted lines not recorded: %+v", got)
	}

	persister.failSave = false
	extra := []cart.Item{
		{ProductID: "A", Name: "A", UnitPrice: decimal.NewFromInt(500)},
		{ProductID: "B", Name: "B", UnitPrice: decimal.NewFromInt(80)},
	}
	for _, item := range extra {
		if err := store.AddItem(ctx, item); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	lines := store.Lines()
	if len(lines) != 2 || lines[0].ProductID != "A" || lines[0].Quantity != 1 || lines[1].ProductID != "B" {
		t.Fatalf("only the submitted quantities should be removed, got %+v", lines)
	}
	if state := w.State(); state.CartClearPending || state.SubmittedLines != nil {
		t.Fatalf("reconciled state should be cleared, got %+v", state)
	}
}

func TestBuildOrderTotalMatchesCart(t *testing.T) {
	ctx := context.Background()
	store, _ := cartWithA(t)
	for _, item := range []cart.Item{
		{ProductID: "B", Name: "Gypsophila", UnitPrice: decimal.RequireFromString("33.35")},
		{ProductID: "B", Name: "Gypsophila", UnitPrice: decimal.RequireFromString("33.35")},
	} {
		if err := store.AddItem(ctx, item); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	draft := Draft{Contact: validContact(), Address: validAddress(), Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery, ZoneID: "suburbs"}}
	ref := testReference()

	order := BuildOrder(uuid.NewString(), draft, ref, store.Lines())

	want := GrandTotal(draft, ref, store.Total())
	if !order.TotalPrice.Equal(want) || !want.Equal(decimal.RequireFromString("1216.70")) {
		t.Fatalf("order total %s, cart-based total %s", order.TotalPrice, want)
	}
	if !order.Delivery.Price.Equal(DeliveryPrice(draft, ref, store.Total())) {
		t.Fatalf("delivery price %s drifted from the cart view", order.Delivery.Price)
	}
}
