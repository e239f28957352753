package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/choko510/jirotter-sub000/internal/model"
	"github.com/choko510/jirotter-sub000/internal/protocol"
)

type fakeAPI struct {
	status    AuthStatus
	statusErr error
	shops     []model.Shop
	history   []model.ShopHistory

	patched  []patchCall
	patchRes model.Shop
	patchErr error
}

type patchCall struct {
	id    int64
	field string
	value any
}

func (f *fakeAPI) AuthStatus(ctx context.Context) (AuthStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeAPI) ListShops(ctx context.Context, limit, offset int) ([]model.Shop, error) {
	return f.shops, nil
}

func (f *fakeAPI) PatchShop(ctx context.Context, id int64, field string, value any) (model.Shop, error) {
	f.patched = append(f.patched, patchCall{id, field, value})
	if f.patchErr != nil {
		return model.Shop{}, f.patchErr
	}
	return f.patchRes, nil
}

func (f *fakeAPI) ShopHistory(ctx context.Context, id int64, limit int) ([]model.ShopHistory, error) {
	return f.history, nil
}

type sentFrame struct {
	typ     string
	payload any
}

type fakeChannel struct {
	up   bool
	sent []sentFrame
}

func (c *fakeChannel) Connected() bool { return c.up }

func (c *fakeChannel) Send(typ string, payload any) {
	if !c.up {
		return
	}
	c.sent = append(c.sent, sentFrame{typ, payload})
}

func (c *fakeChannel) ofType(typ string) []sentFrame {
	var out []sentFrame
	for _, f := range c.sent {
		if f.typ == typ {
			out = append(out, f)
		}
	}
	return out
}

type fakeNotifier struct {
	infos  []string
	errors []string
}

func (n *fakeNotifier) Info(msg string)  { n.infos = append(n.infos, msg) }
func (n *fakeNotifier) Error(msg string) { n.errors = append(n.errors, msg) }

func seedShops() []model.Shop {
	w := 30
	return []model.Shop{
		{ID: 1, Name: "ラーメン二郎 三田本店", Address: "東京都港区三田", WaitTime: &w, UpdatedBy: "admin"},
		{ID: 2, Name: "ラーメン二郎 仙台店", Address: "宮城県仙台市"},
		{ID: 3, Name: "麺屋いちばん", Address: "大阪府大阪市"},
	}
}

func newTestEditor(t *testing.T, up bool) (*Editor, *fakeAPI, *fakeChannel, *fakeNotifier) {
	t.Helper()
	api := &fakeAPI{
		status: AuthStatus{Authenticated: true, UserID: 2, Username: "staff", IsAdmin: true},
		shops:  seedShops(),
	}
	ch := &fakeChannel{up: up}
	notify := &fakeNotifier{}
	ed := New(api, ch, notify)
	if err := ed.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return ed, api, ch, notify
}

func frame(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	raw, err := protocol.Encode(typ, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", typ, err)
	}
	return raw
}

func TestInitRequiresAdmin(t *testing.T) {
	tests := []struct {
		name   string
		status AuthStatus
		want   error
	}{
		{"anonymous", AuthStatus{Authenticated: false}, ErrNotAuthenticated},
		{"regular user", AuthStatus{Authenticated: true, UserID: 9, Username: "guest"}, ErrNotAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ed := New(&fakeAPI{status: tt.status}, &fakeChannel{}, &fakeNotifier{})
			err := ed.Init(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("Init() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStartEditRequestsLock(t *testing.T) {
	ed, _, ch, _ := newTestEditor(t, true)

	cur, err := ed.StartEdit(1, model.FieldName)
	assert.Equal(t, err, nil)
	assert.Equal(t, cur, "ラーメン二郎 三田本店")

	reqs := ch.ofType(protocol.TypeLockRequest)
	assert.Equal(t, len(reqs), 1)
	assert.Equal(t, reqs[0].payload, protocol.LockRequest{ShopID: 1})
}

func TestSecondEditRejectedWhileOneIsOpen(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)

	_, err := ed.StartEdit(1, model.FieldName)
	assert.Equal(t, err, nil)

	if _, err := ed.StartEdit(2, model.FieldAddress); !errors.Is(err, ErrEditInProgress) {
		t.Errorf("second StartEdit = %v, want ErrEditInProgress", err)
	}
	// the first edit survives the rejection
	sess, ok := ed.Session()
	assert.Equal(t, ok, true)
	assert.Equal(t, sess.ShopID, int64(1))
}

func TestStartEditRejectedOnLockedRow(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)
	ed.HandleFrame(frame(t, protocol.TypeLockFailed, protocol.LockFailed{
		ShopID: 2, LockedBy: "7", LockedByName: "yamada",
	}))

	if _, err := ed.StartEdit(2, model.FieldName); !errors.Is(err, ErrRowLocked) {
		t.Errorf("StartEdit on locked row = %v, want ErrRowLocked", err)
	}
}

func TestWaitTimePrefillIsBareDigits(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)

	cur, err := ed.StartEdit(1, model.FieldWaitTime)
	assert.Equal(t, err, nil)
	assert.Equal(t, cur, "30")

	assert.Equal(t, ed.Cancel(), nil)

	cur, err = ed.StartEdit(2, model.FieldWaitTime)
	assert.Equal(t, err, nil)
	assert.Equal(t, cur, "")
}

func TestCommitSendsUpdateThenUnlock(t *testing.T) {
	ed, api, ch, _ := newTestEditor(t, true)

	_, err := ed.StartEdit(1, model.FieldWaitTime)
	assert.Equal(t, err, nil)
	assert.Equal(t, ed.Commit(context.Background(), "45"), nil)

	updates := ch.ofType(protocol.TypeUpdateField)
	assert.Equal(t, len(updates), 1)
	assert.Equal(t, updates[0].payload, protocol.UpdateField{ShopID: 1, Field: "wait_time", Value: 45})

	unlocks := ch.ofType(protocol.TypeUnlockRequest)
	assert.Equal(t, len(unlocks), 1)
	assert.Equal(t, unlocks[0].payload, protocol.UnlockRequest{ShopID: 1})

	// the update must not reach the cache until the server echoes it back
	s, _ := ed.Shop(1)
	assert.Equal(t, *s.WaitTime, 30)
	assert.Equal(t, len(api.patched), 0)

	if _, ok := ed.Session(); ok {
		t.Error("session still open after commit")
	}
}

func TestCommitEmptyWaitTimeSendsNull(t *testing.T) {
	ed, _, ch, _ := newTestEditor(t, true)

	_, err := ed.StartEdit(1, model.FieldWaitTime)
	assert.Equal(t, err, nil)
	assert.Equal(t, ed.Commit(context.Background(), "  "), nil)

	updates := ch.ofType(protocol.TypeUpdateField)
	assert.Equal(t, len(updates), 1)
	assert.Equal(t, updates[0].payload, protocol.UpdateField{ShopID: 1, Field: "wait_time", Value: nil})
}

func TestCommitRejectsNonNumericWaitTime(t *testing.T) {
	ed, _, ch, notify := newTestEditor(t, true)

	_, err := ed.StartEdit(1, model.FieldWaitTime)
	assert.Equal(t, err, nil)

	if err := ed.Commit(context.Background(), "abc"); err == nil {
		t.Fatal("Commit accepted a non-numeric wait time")
	}

	// the edit stays open for correction and nothing goes on the wire
	if _, ok := ed.Session(); !ok {
		t.Error("session closed by a failed validation")
	}
	assert.Equal(t, len(ch.ofType(protocol.TypeUpdateField)), 0)
	assert.Equal(t, len(notify.errors), 1)

	assert.Equal(t, ed.Commit(context.Background(), "45"), nil)
	assert.Equal(t, len(ch.ofType(protocol.TypeUpdateField)), 1)
}

func TestCommitDisconnectedFallsBackToREST(t *testing.T) {
	ed, api, ch, _ := newTestEditor(t, false)
	w := 45
	api.patchRes = model.Shop{ID: 1, Name: "ラーメン二郎 三田本店", WaitTime: &w, UpdatedBy: "staff"}

	_, err := ed.StartEdit(1, model.FieldWaitTime)
	assert.Equal(t, err, nil)
	assert.Equal(t, ed.Commit(context.Background(), "45"), nil)

	assert.Equal(t, len(ch.sent), 0)
	assert.Equal(t, len(api.patched), 1)
	assert.Equal(t, api.patched[0], patchCall{id: 1, field: "wait_time", value: 45})

	// the REST response is applied directly since no broadcast will come
	s, _ := ed.Shop(1)
	assert.Equal(t, *s.WaitTime, 45)
	assert.Equal(t, s.UpdatedBy, "staff")
}

func TestCommitDisconnectedPatchFailure(t *testing.T) {
	ed, api, _, notify := newTestEditor(t, false)
	api.patchErr = errors.New("boom")

	_, err := ed.StartEdit(1, model.FieldName)
	assert.Equal(t, err, nil)

	if err := ed.Commit(context.Background(), "新しい名前"); err == nil {
		t.Fatal("Commit swallowed the patch failure")
	}
	assert.Equal(t, len(notify.errors), 1)

	// cache keeps the old value and the session is closed
	s, _ := ed.Shop(1)
	assert.Equal(t, s.Name, "ラーメン二郎 三田本店")
	if _, ok := ed.Session(); ok {
		t.Error("session still open after failed patch")
	}
}

func TestCancelRestoresNothing(t *testing.T) {
	ed, api, ch, _ := newTestEditor(t, true)

	_, err := ed.StartEdit(1, model.FieldName)
	assert.Equal(t, err, nil)
	assert.Equal(t, ed.Cancel(), nil)

	s, _ := ed.Shop(1)
	assert.Equal(t, s.Name, "ラーメン二郎 三田本店")
	assert.Equal(t, len(api.patched), 0)
	assert.Equal(t, len(ch.ofType(protocol.TypeUpdateField)), 0)
	assert.Equal(t, len(ch.ofType(protocol.TypeUnlockRequest)), 1)
}

func TestFieldUpdatedAppliesRemoteChange(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	ed.now = func() time.Time { return base }

	ed.HandleFrame(frame(t, protocol.TypeFieldUpdated, protocol.FieldUpdated{
		ShopID: 2, Field: "wait_time", Value: 45, UpdatedByName: "yamada",
	}))

	s, _ := ed.Shop(2)
	assert.Equal(t, *s.WaitTime, 45)
	assert.Equal(t, s.UpdatedBy, "yamada")
	assert.Equal(t, s.UpdatedAt, base)

	rows := ed.Rows("")
	var row2 RowView
	for _, r := range rows {
		if r.Shop.ID == 2 {
			row2 = r
		}
	}
	assert.Equal(t, row2.Flash, true)

	// the highlight clears once its window passes
	ed.now = func() time.Time { return base.Add(2 * time.Second) }
	for _, r := range ed.Rows("") {
		if r.Shop.ID == 2 && r.Flash {
			t.Error("flash survived past its window")
		}
	}
}

func TestFieldUpdatedNullClearsWaitTime(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)

	ed.HandleFrame(frame(t, protocol.TypeFieldUpdated, protocol.FieldUpdated{
		ShopID: 1, Field: "wait_time", Value: nil, UpdatedByName: "staff",
	}))

	s, _ := ed.Shop(1)
	if s.WaitTime != nil {
		t.Errorf("wait time = %d, want cleared", *s.WaitTime)
	}
}

func TestLockFailedForceCancelsOwnEdit(t *testing.T) {
	ed, _, _, notify := newTestEditor(t, true)

	_, err := ed.StartEdit(3, model.FieldName)
	assert.Equal(t, err, nil)

	ed.HandleFrame(frame(t, protocol.TypeLockFailed, protocol.LockFailed{
		ShopID: 3, LockedBy: "7", LockedByName: "yamada",
	}))

	if _, ok := ed.Session(); ok {
		t.Error("edit survived a lock denial for its row")
	}
	assert.Equal(t, len(notify.infos), 1)

	var row3 RowView
	for _, r := range ed.Rows("") {
		if r.Shop.ID == 3 {
			row3 = r
		}
	}
	assert.Equal(t, row3.Lock, LockOther)
	assert.Equal(t, row3.LockedBy, "yamada")
}

func TestLockLifecycleAcrossClients(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)

	ed.HandleFrame(frame(t, protocol.TypeLockAcquired, protocol.LockAcquired{
		ShopID: 2, UserID: "7", UserName: "yamada",
	}))
	h, ok := ed.locks.Lookup(2)
	assert.Equal(t, ok, true)
	assert.Equal(t, h.Name, "yamada")

	ed.HandleFrame(frame(t, protocol.TypeLockReleased, protocol.LockReleased{ShopID: 2}))
	if _, ok := ed.locks.Lookup(2); ok {
		t.Error("lock survived its release broadcast")
	}
}

func TestOwnLockAcquiredRendersSelf(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)

	ed.HandleFrame(frame(t, protocol.TypeLockAcquired, protocol.LockAcquired{
		ShopID: 1, UserID: "2", UserName: "staff",
	}))

	for _, r := range ed.Rows("") {
		if r.Shop.ID == 1 {
			assert.Equal(t, r.Lock, LockSelf)
			assert.Equal(t, r.LockedBy, "")
		}
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	ed, _, _, notify := newTestEditor(t, true)

	ed.HandleFrame([]byte("not json"))
	ed.HandleFrame([]byte(`{"data":{"shop_id":1}}`))
	ed.HandleFrame([]byte(`{"type":"mystery","data":{}}`))

	// noise never surfaces to the user
	assert.Equal(t, len(notify.errors), 0)
	s, _ := ed.Shop(1)
	assert.Equal(t, *s.WaitTime, 30)
}

func TestEditCommitScenario(t *testing.T) {
	// one full pass: edit shop 1, type a value, commit. Exactly one
	// update_field and one unlock_request leave the client, both for shop 1.
	ed, _, ch, _ := newTestEditor(t, true)

	_, err := ed.StartEdit(1, model.FieldWaitTime)
	assert.Equal(t, err, nil)
	assert.Equal(t, ed.Commit(context.Background(), "45"), nil)

	var updates, unlocks int
	for _, f := range ch.sent {
		switch f.typ {
		case protocol.TypeUpdateField:
			updates++
			assert.Equal(t, f.payload.(protocol.UpdateField).ShopID, int64(1))
		case protocol.TypeUnlockRequest:
			unlocks++
			assert.Equal(t, f.payload.(protocol.UnlockRequest).ShopID, int64(1))
		}
	}
	assert.Equal(t, updates, 1)
	assert.Equal(t, unlocks, 1)
}

func TestRowsFilter(t *testing.T) {
	ed, _, _, _ := newTestEditor(t, true)

	tests := []struct {
		name   string
		filter string
		want   int
	}{
		{"empty keeps all", "", 3},
		{"name match", "二郎", 2},
		{"address match", "仙台", 1},
		{"trims and no match", "  札幌  ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, len(ed.Rows(tt.filter)), tt.want)
		})
	}
}

func TestFormatWaitTime(t *testing.T) {
	w := 45
	assert.Equal(t, FormatWaitTime(&w), "45分")
	assert.Equal(t, FormatWaitTime(nil), "-")
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		input   string
		want    any
		wantErr bool
	}{
		{"text passes through", model.FieldName, "らーめん", "らーめん", false},
		{"digits", model.FieldWaitTime, "45", 45, false},
		{"padded digits", model.FieldWaitTime, " 45 ", 45, false},
		{"empty clears", model.FieldWaitTime, "", nil, false},
		{"blank clears", model.FieldWaitTime, "   ", nil, false},
		{"letters", model.FieldWaitTime, "abc", nil, true},
		{"negative", model.FieldWaitTime, "-5", nil, true},
		{"decimal", model.FieldWaitTime, "4.5", nil, true},
		{"mixed", model.FieldWaitTime, "45分", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInput(tt.field, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseInput(%q, %q) error = %v, wantErr %v", tt.field, tt.input, err, tt.wantErr)
			}
			if !tt.wantErr {
				assert.Equal(t, got, tt.want)
			}
		})
	}
}

func TestOpenHistory(t *testing.T) {
	ed, api, _, _ := newTestEditor(t, true)
	api.history = []model.ShopHistory{
		{ID: 10, ShopID: 1, Field: "name", OldValue: "旧", NewValue: "新", EditorName: "staff"},
	}

	entries, err := ed.OpenHistory(context.Background(), 1)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(entries), 1)

	id, open := ed.HistoryOpenFor()
	assert.Equal(t, open, true)
	assert.Equal(t, id, int64(1))

	ed.CloseHistory()
	_, open = ed.HistoryOpenFor()
	assert.Equal(t, open, false)

	if _, err := ed.OpenHistory(context.Background(), 99); !errors.Is(err, ErrUnknownShop) {
		t.Errorf("OpenHistory(99) = %v, want ErrUnknownShop", err)
	}
}
