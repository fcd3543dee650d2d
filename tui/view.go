package tui

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/gdamore/tcell"
	"github.com/rivo/tview"
)

const pageInsert = "insert"

// buildLayout wires the tview widget tree: a header, an entry list next to a
// detail pane, a footer status bar, and a hidden insert popup.
func (a *App) buildLayout() {
	a.tviewApp = tview.NewApplication()

	header := tview.NewTextView().
		SetDynamicColors(true).
		SetText("[green::b]MEMPOOLEDIT[-::-] [darkgray]mempool snapshot editor[-]")
	header.SetBorder(true)

	a.list = tview.NewList().ShowSecondaryText(false)
	a.list.SetBorder(true)
	a.list.SetHighlightFullLine(true)

	a.details = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	a.details.SetBorder(true).SetTitle(" Details ")

	a.footer = tview.NewTextView().SetDynamicColors(true)
	a.footer.SetBorder(true)

	content := tview.NewFlex().
		AddItem(a.list, 0, 35, true).
		AddItem(a.details, 0, 65, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(content, 0, 1, true).
		AddItem(a.footer, 3, 0, false)

	a.input = tview.NewInputField().
		SetLabel("Raw transaction hex: ").
		SetFieldWidth(0)
	a.input.SetDoneFunc(a.handleInsertDone)
	a.input.SetBorder(true).SetTitle(" Insert Raw Transaction (hex) ")

	popup := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(a.input, 3, 0, true).
			AddItem(nil, 0, 1, false), 0, 4, true).
		AddItem(nil, 0, 1, false)

	a.pages = tview.NewPages().
		AddPage("main", main, true, true).
		AddPage(pageInsert, popup, true, false)

	a.tviewApp.SetRoot(a.pages, true)
	a.tviewApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.mode == modeInsert {
			return event
		}
		return a.handleNormalKey(event)
	})
}

// refresh redraws every pane from the current state.
func (a *App) refresh() {
	a.renderList()
	a.renderDetails()
	a.renderFooter()
}

func (a *App) renderList() {
	a.list.Clear()
	a.list.SetTitle(fmt.Sprintf(" TXIDs (%d) ", len(a.snapshot.Entries)))
	for i, entry := range a.snapshot.Entries {
		a.list.AddItem(fmt.Sprintf("%3d %s", i+1, shortTxID(entry.Tx.Hash().String())), "", 0, nil)
	}
	if a.selected >= 0 {
		a.list.SetCurrentItem(a.selected)
	}
}

func (a *App) renderDetails() {
	entry := a.selectedEntry()
	if entry == nil {
		a.details.SetText("[darkgray]No transaction selected[-]")
		return
	}

	msgTx := entry.Tx.MsgTx()
	text := fmt.Sprintf("[green]TXID:[-] %s\n\n", entry.Tx.Hash())
	text += fmt.Sprintf("[green]Version:[-] %d\n", msgTx.Version)
	text += fmt.Sprintf("[green]Lock Time:[-] %d\n", msgTx.LockTime)
	text += fmt.Sprintf("[green]Inputs:[-] %d\n", len(msgTx.TxIn))
	text += fmt.Sprintf("[green]Outputs:[-] %d\n\n", len(msgTx.TxOut))
	text += fmt.Sprintf("[green]Time:[-] %s\n",
		time.Unix(entry.Time, 0).UTC().Format("2006-01-02 15:04:05 UTC"))
	text += fmt.Sprintf("[green]Fee Delta:[-] %s\n\n",
		btcutil.Amount(entry.FeeDelta).Format(btcutil.AmountSatoshi))
	text += "[darkgreen]--- Outputs ---[-]\n"
	for i, out := range msgTx.TxOut {
		text += fmt.Sprintf("  [darkgray][%d][-] %s\n",
			i, btcutil.Amount(out.Value).Format(btcutil.AmountSatoshi))
	}
	a.details.SetText(text)
}

func (a *App) renderFooter() {
	modeIndicator := "[white:darkgreen] NORMAL [-:-]"
	helpText := "q:quit  j/k:nav  i:insert  d:delete  s:save"
	if a.mode == modeInsert {
		modeIndicator = "[black:olive] INSERT [-:-]"
		helpText = "Enter:confirm  Esc:cancel  (paste raw tx hex)"
	}

	text := fmt.Sprintf("%s [green]%s[-]", modeIndicator, helpText)
	if status := a.currentStatus(); status != "" {
		text += fmt.Sprintf("  [yellow]%s[-]", status)
	}
	a.footer.SetText(text)
}

// shortTxID shortens a 64-character transaction ID to its first and last
// eight characters.
func shortTxID(txID string) string {
	if len(txID) <= 19 {
		return txID
	}
	return txID[:8] + "..." + txID[len(txID)-8:]
}
