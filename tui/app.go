// Package tui is the interactive editing session for a decoded mempool
// snapshot. It owns selection and input state and mutates the snapshot
// through a small set of commands; all format knowledge stays in the
// mempoolfile package.
package tui

import (
	"bytes"
	"encoding/hex"
	"strings"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/gdamore/tcell"
	"github.com/pkg/errors"
	"github.com/rivo/tview"

	"github.com/mempooledit/mempooledit/mempoolfile"
)

// statusMessageTimeout is how long a status line message stays visible.
const statusMessageTimeout = 3 * time.Second

type mode int

const (
	modeNormal mode = iota
	modeInsert
)

// App holds the snapshot being edited together with all UI state. It is
// single-owner: every mutation runs on the tview event goroutine.
type App struct {
	snapshot   *mempoolfile.Snapshot
	outputPath string

	mode           mode
	selected       int // index into snapshot.Entries, -1 when empty
	status         string
	statusDeadline time.Time

	tviewApp *tview.Application
	list     *tview.List
	details  *tview.TextView
	footer   *tview.TextView
	input    *tview.InputField
	pages    *tview.Pages

	quit chan struct{}
}

// New creates an editing session for the given snapshot. Saves go to
// outputPath.
func New(snapshot *mempoolfile.Snapshot, outputPath string) *App {
	a := &App{
		snapshot:   snapshot,
		outputPath: outputPath,
		selected:   -1,
		quit:       make(chan struct{}),
	}
	if len(snapshot.Entries) > 0 {
		a.selected = 0
	}
	a.buildLayout()
	a.refresh()
	return a
}

// Run enters the terminal event loop and blocks until the user quits.
func (a *App) Run() error {
	go a.statusExpiryLoop()
	defer close(a.quit)

	err := a.tviewApp.Run()
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// statusExpiryLoop redraws the footer periodically so expired status
// messages disappear without user input.
func (a *App) statusExpiryLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.tviewApp.QueueUpdateDraw(a.renderFooter)
		case <-a.quit:
			return
		}
	}
}

// selectedEntry returns the currently selected entry, or nil when the entry
// sequence is empty.
func (a *App) selectedEntry() *mempoolfile.PoolEntry {
	if a.selected < 0 || a.selected >= len(a.snapshot.Entries) {
		return nil
	}
	return a.snapshot.Entries[a.selected]
}

// next moves the selection down, wrapping around at the end.
func (a *App) next() {
	n := len(a.snapshot.Entries)
	if n == 0 {
		return
	}
	a.selected = (a.selected + 1) % n
}

// previous moves the selection up, wrapping around at the start.
func (a *App) previous() {
	n := len(a.snapshot.Entries)
	if n == 0 {
		return
	}
	if a.selected <= 0 {
		a.selected = n - 1
	} else {
		a.selected--
	}
}

// deleteSelected removes the selected entry and repairs the selection:
// clamped to the new last entry, or cleared when the sequence became empty.
func (a *App) deleteSelected() {
	if a.selectedEntry() == nil {
		return
	}
	err := a.snapshot.RemoveEntry(a.selected)
	if err != nil {
		a.setStatus(err.Error())
		return
	}
	a.setStatus("Transaction deleted")
	if len(a.snapshot.Entries) == 0 {
		a.selected = -1
	} else if a.selected >= len(a.snapshot.Entries) {
		a.selected = len(a.snapshot.Entries) - 1
	}
}

// insertTxHex decodes a raw transaction from hex and appends it as a new
// entry admitted now with no fee delta. A malformed payload leaves the
// snapshot untouched.
func (a *App) insertTxHex(txHex string) error {
	serialized, err := hex.DecodeString(strings.TrimSpace(txHex))
	if err != nil {
		return errors.Wrap(err, "invalid hex")
	}

	var msgTx wire.MsgTx
	err = msgTx.Deserialize(bytes.NewReader(serialized))
	if err != nil {
		return errors.Wrap(err, "invalid transaction")
	}

	a.snapshot.AppendEntry(&mempoolfile.PoolEntry{
		Tx:       btcutil.NewTx(&msgTx),
		Time:     time.Now().Unix(),
		FeeDelta: 0,
	})
	a.selected = len(a.snapshot.Entries) - 1
	a.setStatus("Transaction inserted")
	return nil
}

// save re-serializes the current snapshot to the output path.
func (a *App) save() error {
	err := a.snapshot.Save(a.outputPath)
	if err != nil {
		return err
	}
	log.Infof("Saved %d entries to %s", len(a.snapshot.Entries), a.outputPath)
	return nil
}

func (a *App) setStatus(msg string) {
	a.status = msg
	a.statusDeadline = time.Now().Add(statusMessageTimeout)
}

// currentStatus returns the status message, or an empty string once it has
// expired.
func (a *App) currentStatus() string {
	if a.status == "" || time.Now().After(a.statusDeadline) {
		return ""
	}
	return a.status
}

// handleNormalKey processes a key press in normal mode. Returning nil
// swallows the event.
func (a *App) handleNormalKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyDown:
		a.next()
	case tcell.KeyUp:
		a.previous()
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q':
			a.tviewApp.Stop()
			return nil
		case 'j':
			a.next()
		case 'k':
			a.previous()
		case 'd':
			a.deleteSelected()
		case 'i':
			a.enterInsertMode()
		case 's':
			err := a.save()
			if err != nil {
				log.Errorf("Save failed: %s", err)
				a.setStatus("Save failed: " + err.Error())
			} else {
				a.setStatus("Saved successfully!")
			}
		default:
			return event
		}
	default:
		return event
	}
	a.refresh()
	return nil
}

func (a *App) enterInsertMode() {
	a.mode = modeInsert
	a.input.SetText("")
	a.pages.ShowPage(pageInsert)
	a.tviewApp.SetFocus(a.input)
}

func (a *App) leaveInsertMode() {
	a.mode = modeNormal
	a.input.SetText("")
	a.pages.HidePage(pageInsert)
	a.tviewApp.SetFocus(a.list)
}

// handleInsertDone runs when the insert input field is closed, either by
// confirming with Enter or cancelling with Escape.
func (a *App) handleInsertDone(key tcell.Key) {
	switch key {
	case tcell.KeyEscape:
		a.leaveInsertMode()
		a.refresh()
	case tcell.KeyEnter:
		err := a.insertTxHex(a.input.GetText())
		if err != nil {
			// Recoverable: report and stay in insert mode with the input
			// intact.
			a.setStatus(err.Error())
			a.renderFooter()
			return
		}
		a.leaveInsertMode()
		a.refresh()
	}
}
