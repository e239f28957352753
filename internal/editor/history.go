package editor

import (
	"context"
	"fmt"

	"github.com/choko510/jirotter-sub000/internal/model"
)

// OpenHistory fetches the change log for one shop and marks the history
// panel open for it. Re-opening for another shop simply switches over.
func (e *Editor) OpenHistory(ctx context.Context, shopID int64) ([]model.ShopHistory, error) {
	e.mu.Lock()
	_, known := e.index[shopID]
	e.mu.Unlock()
	if !known {
		return nil, ErrUnknownShop
	}

	entries, err := e.api.ShopHistory(ctx, shopID, historyLimit)
	if err != nil {
		e.notify.Error("編集履歴を取得できませんでした")
		return nil, fmt.Errorf("shop %d history: %w", shopID, err)
	}

	e.mu.Lock()
	e.historyOpen = true
	e.historyShop = shopID
	e.mu.Unlock()
	return entries, nil
}

// CloseHistory dismisses the history panel.
func (e *Editor) CloseHistory() {
	e.mu.Lock()
	e.historyOpen = false
	e.historyShop = 0
	e.mu.Unlock()
}

// HistoryOpenFor reports which shop the history panel is showing, if open.
func (e *Editor) HistoryOpenFor() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.historyShop, e.historyOpen
}
