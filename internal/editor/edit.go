package editor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/choko510/jirotter-sub000/internal/model"
	"github.com/choko510/jirotter-sub000/internal/protocol"
)

var waitTimeRe = regexp.MustCompile(`^[0-9]+$`)

// StartEdit opens an edit on one cell. It refuses when another edit is
// already open or the row is locked by someone else, requests the row lock
// over the live channel, and returns the current value prefilled for the
// input. Wait time is prefilled as bare digits; the unit suffix belongs to
// display, not editing.
func (e *Editor) StartEdit(shopID int64, field string) (string, error) {
	if !model.IsEditableField(field) {
		return "", ErrFieldNotEditable
	}

	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		return "", ErrEditInProgress
	}
	if h, ok := e.locks.Lookup(shopID); ok && h.UserID != e.userID {
		e.mu.Unlock()
		return "", ErrRowLocked
	}
	i, ok := e.index[shopID]
	if !ok {
		e.mu.Unlock()
		return "", ErrUnknownShop
	}
	original := editValue(e.shops[i], field)
	e.session = &EditSession{ShopID: shopID, Field: field, Original: original}
	ch := e.ch
	e.mu.Unlock()

	if ch != nil && ch.Connected() {
		ch.Send(protocol.TypeLockRequest, protocol.LockRequest{ShopID: shopID})
	}
	return original, nil
}

// Commit validates the input and sends the update. Connected, it goes over
// the websocket and the local cache waits for the field_updated broadcast;
// disconnected, it falls back to a REST patch and applies the response
// directly. Validation failure keeps the edit open so the user can fix the
// input in place.
func (e *Editor) Commit(ctx context.Context, input string) error {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return ErrNoEdit
	}
	sess := *e.session
	ch := e.ch
	e.mu.Unlock()

	value, err := parseInput(sess.Field, input)
	if err != nil {
		e.notify.Error("待ち時間は数値で入力してください")
		return err
	}

	if ch != nil && ch.Connected() {
		ch.Send(protocol.TypeUpdateField, protocol.UpdateField{
			ShopID: sess.ShopID,
			Field:  sess.Field,
			Value:  value,
		})
		ch.Send(protocol.TypeUnlockRequest, protocol.UnlockRequest{ShopID: sess.ShopID})
		e.closeSession(sess.ShopID)
		return nil
	}

	updated, err := e.api.PatchShop(ctx, sess.ShopID, sess.Field, value)
	if err != nil {
		e.closeSession(sess.ShopID)
		e.notify.Error("保存に失敗しました")
		return fmt.Errorf("patch shop %d: %w", sess.ShopID, err)
	}

	e.mu.Lock()
	if i, ok := e.index[sess.ShopID]; ok {
		e.shops[i] = updated
	}
	e.session = nil
	e.mu.Unlock()
	return nil
}

// Cancel abandons the edit, releasing the row lock and leaving the cached
// value untouched.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return ErrNoEdit
	}
	shopID := e.session.ShopID
	e.session = nil
	ch := e.ch
	e.mu.Unlock()

	if ch != nil && ch.Connected() {
		ch.Send(protocol.TypeUnlockRequest, protocol.UnlockRequest{ShopID: shopID})
	}
	return nil
}

func (e *Editor) closeSession(shopID int64) {
	e.mu.Lock()
	if e.session != nil && e.session.ShopID == shopID {
		e.session = nil
	}
	e.mu.Unlock()
}

// editValue is the prefill for an input: the stored value, except wait time
// which is rendered as bare digits (empty when unset).
func editValue(s model.Shop, field string) string {
	if field == model.FieldWaitTime {
		if s.WaitTime == nil {
			return ""
		}
		return strconv.Itoa(*s.WaitTime)
	}
	return model.ShopFieldString(s, field)
}

// parseInput converts raw input into the wire value. Wait time accepts
// digits only; empty clears the value to null. Text fields pass through.
func parseInput(field, input string) (any, error) {
	if field != model.FieldWaitTime {
		return input, nil
	}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}
	if !waitTimeRe.MatchString(trimmed) {
		return nil, fmt.Errorf("editor: wait time %q is not a number", input)
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, fmt.Errorf("editor: wait time %q: %w", input, err)
	}
	return n, nil
}
