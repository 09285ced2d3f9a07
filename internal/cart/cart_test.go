package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
)

func rose() Item {
	return Item{ProductID: "rose", Name: "Red rose", UnitPrice: decimal.RequireFromString("12.50"), ImageRef: "img/rose.webp"}
}

func tulip() Item {
	return Item{ProductID: "tulip", Name: "Tulip", UnitPrice: decimal.RequireFromString("3.20")}
}

func openMemory(t *testing.T, initial []byte) (*Store, *MemoryPersister) {
	t.Helper()
	persister := NewMemoryPersister(initial)
	store, err := Open(context.Background(), persister, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return store, persister
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	ctx := context.Background()
	store, _ := openMemory(t, nil)

	for i := 0; i < 3; i++ {
		if err := store.AddItem(ctx, rose()); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := store.AddItem(ctx, tulip()); err != nil {
		t.Fatalf("add: %v", err)
	}

	lines := store.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected one line per product, got %d", len(lines))
	}
	if lines[0].ProductID != "rose" || lines[0].Quantity != 3 {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
	if lines[1].ProductID != "tulip" || lines[1].Quantity != 1 {
		t.Fatalf("unexpected second line %+v", lines[1])
	}
	if store.ItemCount() != 4 {
		t.Fatalf("expected item count 4, got %d", store.ItemCount())
	}
}

func TestTotalIsSumOfLines(t *testing.T) {
	lily := Item{ProductID: "lily", Name: "Lily", UnitPrice: decimal.RequireFromString("0.10")}

	cases := []struct {
		name  string
		adds  []Item
		lines int
		want  string
	}{
		{name: "empty", want: "0"},
		{name: "single", adds: []Item{rose()}, lines: 1, want: "12.50"},
		{name: "repeated product", adds: []Item{rose(), rose(), tulip()}, lines: 2, want: "28.20"},
		{name: "interleaved", adds: []Item{tulip(), rose(), tulip(), rose(), tulip()}, lines: 2, want: "34.60"},
		{name: "fractional cents", adds: []Item{lily, lily, lily}, lines: 1, want: "0.30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := openMemory(t, nil)
			for _, item := range tc.adds {
				if err := store.AddItem(ctx, item); err != nil {
					t.Fatalf("add %s: %v", item.ProductID, err)
				}
			}

			lines := store.Lines()
			if len(lines) != tc.lines {
				t.Fatalf("expected %d lines, got %+v", tc.lines, lines)
			}
			if store.ItemCount() != len(tc.adds) {
				t.Fatalf("item count %d does not match %d adds", store.ItemCount(), len(tc.adds))
			}
			want := decimal.RequireFromString(tc.want)
			first := store.Total()
			if !first.Equal(want) {
				t.Fatalf("expected total %s, got %s", want, first)
			}
			if second := store.Total(); !second.Equal(first) {
				t.Fatalf("total changed between reads: %s then %s", first, second)
			}
			if !LinesTotal(lines).Equal(first) {
				t.Fatalf("LinesTotal %s differs from Total %s", LinesTotal(lines), first)
			}
		})
	}
}

func TestRemoveLinesTakesOnlyGivenQuantities(t *testing.T) {
	ctx := context.Background()
	store, persister := openMemory(t, nil)
	for _, item := range []Item{rose(), rose(), rose(), tulip()} {
		if err := store.AddItem(ctx, item); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	taken := []Line{{ProductID: "rose", Quantity: 2}, {ProductID: "tulip", Quantity: 5}, {ProductID: "orchid", Quantity: 1}}
	if err := store.RemoveLines(ctx, taken); err != nil {
		t.Fatalf("remove lines: %v", err)
	}
	lines := store.Lines()
	if len(lines) != 1 || lines[0].ProductID != "rose" || lines[0].Quantity != 1 {
		t.Fatalf("unexpected lines %+v", lines)
	}
	var persisted []Line
	if err := json.Unmarshal(persister.Bytes(), &persisted); err != nil || len(persisted) != 1 {
		t.Fatalf("persisted cart not updated: %s", persister.Bytes())
	}
}

func TestSetQuantityNonPositiveRemoves(t *testing.T) {
	ctx := context.Background()
	for _, qty := range []int{0, -2} {
		store, _ := openMemory(t, nil)
		_ = store.AddItem(ctx, rose())
		_ = store.AddItem(ctx, tulip())

		if err := store.SetQuantity(ctx, "rose", qty); err != nil {
			t.Fatalf("set quantity: %v", err)
		}
		lines := store.Lines()
		if len(lines) != 1 || lines[0].ProductID != "tulip" {
			t.Fatalf("quantity %d should remove the line, got %+v", qty, lines)
		}
	}
}

func TestSetQuantityOverwritesAndIgnoresMissing(t *testing.T) {
	ctx := context.Background()
	store, _ := openMemory(t, nil)
	_ = store.AddItem(ctx, rose())

	if err := store.SetQuantity(ctx, "rose", 7); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if err := store.SetQuantity(ctx, "missing", 2); err != nil {
		t.Fatalf("set quantity on absent line: %v", err)
	}
	lines := store.Lines()
	if len(lines) != 1 || lines[0].Quantity != 7 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := openMemory(t, nil)
	_ = store.AddItem(ctx, rose())

	if err := store.RemoveItem(ctx, "rose"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.RemoveItem(ctx, "rose"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if !store.IsEmpty() {
		t.Fatal("expected empty cart")
	}
}

func TestMutationsPersistFullArray(t *testing.T) {
	ctx := context.Background()
	store, persister := openMemory(t, nil)
	_ = store.AddItem(ctx, rose())
	_ = store.AddItem(ctx, tulip())

	var stored []map[string]any
	if err := json.Unmarshal(persister.Bytes(), &stored); err != nil {
		t.Fatalf("persisted cart is not a json array: %v", err)
	}
	if len(stored) != 2 || stored[0]["productId"] != "rose" || stored[0]["unitPrice"] != 12.5 {
		t.Fatalf("unexpected persisted cart %s", persister.Bytes())
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if string(persister.Bytes()) != "[]" {
		t.Fatalf("clear should persist an empty array, got %s", persister.Bytes())
	}
}

func TestReopenRestoresLines(t *testing.T) {
	ctx := context.Background()
	store, persister := openMemory(t, nil)
	_ = store.AddItem(ctx, rose())
	_ = store.SetQuantity(ctx, "rose", 4)

	reopened, err := Open(ctx, persister, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ItemCount() != 4 || !reopened.Total().Equal(decimal.RequireFromString("50")) {
		t.Fatalf("unexpected reopened cart %+v", reopened.Lines())
	}
}

func TestOpenMalformedYieldsEmptyCart(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	for _, raw := range []string{"{not json", `{"productId":"rose"}`, ""} {
		store, err := Open(context.Background(), NewMemoryPersister([]byte(raw)), logg)
		if err != nil {
			t.Fatalf("malformed data must not fail open: %v", err)
		}
		if !store.IsEmpty() {
			t.Fatalf("expected empty cart for %q", raw)
		}
	}
	if !bytes.Contains(buf.Bytes(), []byte("persisted cart is malformed")) {
		t.Fatalf("expected a warning, got %s", buf.String())
	}
}

func TestOpenDropsInvalidLines(t *testing.T) {
	raw := `[
		{"productId":"rose","name":"Rose","unitPrice":2,"quantity":2},
		{"productId":"","name":"Blank","unitPrice":1,"quantity":1},
		{"productId":"lily","name":"Lily","unitPrice":5,"quantity":0},
		{"productId":"rose","name":"Rose","unitPrice":2,"quantity":1}
	]`
	store, _ := openMemory(t, []byte(raw))
	lines := store.Lines()
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}

func TestOpenPropagatesLoadError(t *testing.T) {
	if _, err := Open(context.Background(), &failingPersister{loadErr: errors.New("down")}, nil); err == nil {
		t.Fatal("expected load error")
	}
}

func TestFailedSaveLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	persister := &failingPersister{}
	store, err := Open(ctx, persister, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = store.AddItem(ctx, rose())

	persister.saveErr = errors.New("disk full")
	if err := store.Clear(ctx); err == nil {
		t.Fatal("expected save error")
	}
	if store.ItemCount() != 1 {
		t.Fatalf("failed clear must keep lines, got %+v", store.Lines())
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	store, _ := openMemory(t, nil)
	_ = store.AddItem(context.Background(), rose())
	lines := store.Lines()
	lines[0].Quantity = 99
	if store.ItemCount() != 1 {
		t.Fatal("mutating Lines() result must not change the cart")
	}
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	opener := NewRedisOpener(kv, time.Hour, nil)
	cartID := "5b0c7f36-3f51-4e8c-9d4b-4fb1d7e7b0a1"

	store, err := opener.Open(ctx, cartID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !store.IsEmpty() {
		t.Fatal("missing key should yield empty cart")
	}
	_ = store.AddItem(ctx, rose())

	if kv.ttl["fl:cart:"+cartID] != time.Hour {
		t.Fatalf("expected cart ttl, got %v", kv.ttl)
	}
	reopened, err := opener.Open(ctx, cartID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ItemCount() != 1 {
		t.Fatalf("expected persisted line, got %+v", reopened.Lines())
	}
}

type failingPersister struct {
	data    []byte
	loadErr error
	saveErr error
}

func (p *failingPersister) Load(context.Context) ([]byte, error) {
	return p.data, p.loadErr
}

func (p *failingPersister) Save(_ context.Context, data []byte) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	p.data = data
	return nil
}

type fakeKV struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttl[key] = ttl
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) CartKey(cartID string) string {
	return "fl:cart:" + cartID
}
