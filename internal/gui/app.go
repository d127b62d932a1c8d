// Package gui provides the desktop dashboard for monitoring the
// screening poller.
package gui

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/arxmedia/resume-screener/internal/agent"
	"github.com/arxmedia/resume-screener/internal/config"
	"github.com/arxmedia/resume-screener/internal/evaluate"
	"github.com/arxmedia/resume-screener/internal/export"
	"github.com/arxmedia/resume-screener/internal/ledger"
	"github.com/arxmedia/resume-screener/internal/models"
	"github.com/arxmedia/resume-screener/internal/schema"
)

// threadRow is one line of the dashboard table.
type threadRow struct {
	threadID string
	status   string
	missing  string
	updated  string
}

// App represents the main GUI application
type App struct {
	fyneApp    fyne.App
	mainWindow fyne.Window
	config     *config.Config
	store      *ledger.Store
	screener   *agent.Screener
	logger     *zap.SugaredLogger

	cancelFunc context.CancelFunc

	// UI Components
	statusLabel  *widget.Label
	startBtn     *widget.Button
	stopBtn      *widget.Button
	refreshBtn   *widget.Button
	threadsTable *widget.Table
	exportBtn    *widget.Button

	rows []threadRow
}

// New creates the dashboard over an already wired screener and ledger.
func New(cfg *config.Config, store *ledger.Store, screener *agent.Screener, logger *zap.SugaredLogger) *App {
	a := app.New()
	w := a.NewWindow("Resume Screener")
	w.Resize(fyne.NewSize(900, 600))

	guiApp := &App{
		fyneApp:    a,
		mainWindow: w,
		config:     cfg,
		store:      store,
		screener:   screener,
		logger:     logger,
	}

	guiApp.setupUI()
	guiApp.refreshThreads()

	return guiApp
}

// Run starts the GUI application
func (a *App) Run() {
	a.mainWindow.SetOnClosed(a.handleStop)
	a.mainWindow.ShowAndRun()
}

// setupUI initializes all UI components
func (a *App) setupUI() {
	tabs := container.NewAppTabs(
		container.NewTabItem("Screening", a.createScreeningTab()),
		container.NewTabItem("Settings", a.createSettingsTab()),
	)

	a.mainWindow.SetContent(tabs)
}

// createScreeningTab creates the main monitoring tab
func (a *App) createScreeningTab() fyne.CanvasObject {
	a.statusLabel = widget.NewLabel("Poller: stopped")
	a.startBtn = widget.NewButton("Start Polling", a.handleStart)
	a.stopBtn = widget.NewButton("Stop", a.handleStop)
	a.stopBtn.Disable()
	a.refreshBtn = widget.NewButton("Refresh", a.refreshThreads)

	controlSection := container.NewVBox(
		widget.NewLabel("Inbox Poller"),
		container.NewHBox(a.statusLabel, a.startBtn, a.stopBtn, a.refreshBtn),
	)

	a.threadsTable = widget.NewTable(
		func() (int, int) {
			return len(a.rows) + 1, 4 // +1 for header
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("Template")
		},
		func(id widget.TableCellID, cell fyne.CanvasObject) {
			label := cell.(*widget.Label)
			if id.Row == 0 {
				headers := []string{"Thread", "Status", "Missing", "Updated"}
				if id.Col < len(headers) {
					label.SetText(headers[id.Col])
					label.TextStyle = fyne.TextStyle{Bold: true}
				}
			} else if id.Row-1 < len(a.rows) {
				row := a.rows[id.Row-1]
				switch id.Col {
				case 0:
					label.SetText(row.threadID)
				case 1:
					label.SetText(row.status)
				case 2:
					label.SetText(row.missing)
				case 3:
					label.SetText(row.updated)
				}
			}
		},
	)
	a.threadsTable.SetColumnWidth(0, 200)
	a.threadsTable.SetColumnWidth(1, 100)
	a.threadsTable.SetColumnWidth(2, 300)
	a.threadsTable.SetColumnWidth(3, 160)

	a.exportBtn = widget.NewButton("Export to Excel", a.handleExport)

	threadsSection := container.NewBorder(
		widget.NewLabel("Screening Threads"),
		a.exportBtn,
		nil, nil,
		container.NewScroll(a.threadsTable),
	)

	return container.NewBorder(
		container.NewVBox(controlSection, widget.NewSeparator()),
		nil, nil, nil,
		threadsSection,
	)
}

// createSettingsTab creates the settings tab
func (a *App) createSettingsTab() fyne.CanvasObject {
	projectEntry := widget.NewEntry()
	projectEntry.SetText(a.config.GoogleCloudProject)

	locationEntry := widget.NewEntry()
	locationEntry.SetText(a.config.GoogleCloudLocation)

	gmailCredsEntry := widget.NewEntry()
	gmailCredsEntry.SetText(a.config.GmailCredentialsPath)

	gmailCredsBtn := widget.NewButton("Browse...", func() {
		dialog.ShowFileOpen(func(uc fyne.URIReadCloser, err error) {
			if err == nil && uc != nil {
				gmailCredsEntry.SetText(uc.URI().Path())
				uc.Close()
			}
		}, a.mainWindow)
	})

	tavilyEntry := widget.NewPasswordEntry()
	tavilyEntry.SetText(a.config.TavilyAPIKey)

	hrEmailEntry := widget.NewEntry()
	hrEmailEntry.SetText(a.config.HREmail)
	hrEmailEntry.SetPlaceHolder("hr@example.com")

	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(strconv.Itoa(a.config.PollIntervalSeconds))

	form := widget.NewForm(
		widget.NewFormItem("Google Cloud Project", projectEntry),
		widget.NewFormItem("Google Cloud Location", locationEntry),
		widget.NewFormItem("Gmail Credentials", container.NewBorder(nil, nil, nil, gmailCredsBtn, gmailCredsEntry)),
		widget.NewFormItem("Tavily API Key", tavilyEntry),
		widget.NewFormItem("HR Email", hrEmailEntry),
		widget.NewFormItem("Poll Interval (seconds)", intervalEntry),
	)

	saveBtn := widget.NewButton("Save Settings", func() {
		seconds, err := strconv.Atoi(intervalEntry.Text)
		if err != nil || seconds <= 0 {
			dialog.ShowError(fmt.Errorf("poll interval must be a positive number of seconds"), a.mainWindow)
			return
		}

		a.config.GoogleCloudProject = projectEntry.Text
		a.config.GoogleCloudLocation = locationEntry.Text
		a.config.GmailCredentialsPath = gmailCredsEntry.Text
		a.config.TavilyAPIKey = tavilyEntry.Text
		a.config.HREmail = hrEmailEntry.Text
		a.config.PollIntervalSeconds = seconds

		if err := a.config.Save(); err != nil {
			dialog.ShowError(err, a.mainWindow)
			return
		}
		a.config.ApplyToEnv()

		dialog.ShowInformation("Success", "Settings saved successfully", a.mainWindow)
	})

	validateBtn := widget.NewButton("Validate", func() {
		if err := a.config.Validate(); err != nil {
			dialog.ShowError(fmt.Errorf("validation failed: %w", err), a.mainWindow)
			return
		}
		dialog.ShowInformation("Success", "Configuration is valid", a.mainWindow)
	})

	return container.NewVBox(
		form,
		container.NewHBox(saveBtn, validateBtn),
	)
}

// handleStart launches the background poll loop and a table refresh
// ticker tied to its lifetime.
func (a *App) handleStart() {
	if a.cancelFunc != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelFunc = cancel

	a.startBtn.Disable()
	a.stopBtn.Enable()
	a.statusLabel.SetText("Poller: running")

	go a.screener.Run(ctx, a.config.PollInterval())

	go func() {
		ticker := time.NewTicker(a.config.PollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fyne.Do(a.refreshThreads)
			}
		}
	}()
}

// handleStop stops the poll loop.
func (a *App) handleStop() {
	if a.cancelFunc == nil {
		return
	}
	a.cancelFunc()
	a.cancelFunc = nil

	a.startBtn.Enable()
	a.stopBtn.Disable()
	a.statusLabel.SetText("Poller: stopped")
}

// refreshThreads reloads the table from the ledger.
func (a *App) refreshThreads() {
	active, err := a.store.ActiveThreads()
	if err != nil {
		a.logger.Errorw("failed to list active threads", "error", err)
		return
	}
	completed, err := a.store.CompletedThreads()
	if err != nil {
		a.logger.Errorw("failed to list completed threads", "error", err)
		return
	}

	reqs := schema.Requirements()
	rows := make([]threadRow, 0, len(active)+len(completed))
	for _, state := range append(active, completed...) {
		row := threadRow{
			threadID: state.ThreadID,
			status:   state.Status,
			updated:  state.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		if state.Status != models.StatusComplete {
			verdict := evaluate.Evaluate(state.Fields, reqs)
			names := make([]string, 0, len(verdict.Missing))
			for _, req := range verdict.Missing {
				names = append(names, req.Name)
			}
			row.missing = strings.Join(names, ", ")
		}
		rows = append(rows, row)
	}

	a.rows = rows
	if a.threadsTable != nil {
		a.threadsTable.Refresh()
	}
}

// handleExport writes the completed-applications workbook.
func (a *App) handleExport() {
	completed, err := a.store.CompletedThreads()
	if err != nil {
		dialog.ShowError(err, a.mainWindow)
		return
	}
	if len(completed) == 0 {
		dialog.ShowError(fmt.Errorf("no completed applications to export"), a.mainWindow)
		return
	}

	checks := make(map[string]models.BackgroundCheck, len(completed))
	for _, state := range completed {
		if check, found, err := a.store.GetBackgroundCheck(state.ThreadID); err == nil && found {
			checks[state.ThreadID] = check
		}
	}

	timestamp := time.Now().Format("2006-01-02_150405")
	defaultName := fmt.Sprintf("Completed_Applications_%s.xlsx", timestamp)

	saveDialog := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWindow)
			return
		}
		if uc == nil {
			return // User canceled
		}
		defer uc.Close()

		outputPath := uc.URI().Path()
		if err := export.ExportCompleted(completed, checks, outputPath); err != nil {
			dialog.ShowError(fmt.Errorf("failed to export: %w", err), a.mainWindow)
			return
		}

		dialog.ShowInformation("Success", "Report exported to "+filepath.Base(outputPath), a.mainWindow)
	}, a.mainWindow)
	saveDialog.SetFileName(defaultName)
	saveDialog.Show()
}
