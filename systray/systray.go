package systray

import (
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"
)

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	statusURL string
	onReload  func()
	quit      chan struct{}
	quitOnce  sync.Once
}

// NewSystrayManager creates a new systray manager. An empty statusURL
// disables the status page entry.
func NewSystrayManager(statusURL string, onReload func()) *SystrayManager {
	return &SystrayManager{
		statusURL: statusURL,
		onReload:  onReload,
		quit:      make(chan struct{}),
	}
}

// Run starts the system tray (blocking call)
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// SetTooltip updates the tray tooltip, e.g. after a rejected reload
func (m *SystrayManager) SetTooltip(text string) {
	systray.SetTooltip(text)
}

// onReady is called when the systray is ready
func (m *SystrayManager) onReady() {
	systray.SetIcon(iconData)
	systray.SetTitle("keyroute")
	systray.SetTooltip("keyroute - key remapping")

	mStatus := systray.AddMenuItem("Open status page", "Open the keyroute status page")
	if m.statusURL == "" {
		mStatus.Disable()
	}
	mReload := systray.AddMenuItem("Reload configuration", "Reload the configuration file")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit keyroute")

	// Handle menu clicks
	go func() {
		for {
			select {
			case <-mStatus.ClickedCh:
				m.openStatusPage()
			case <-mReload.ClickedCh:
				slog.Info("User requested reload from system tray")
				if m.onReload != nil {
					m.onReload()
				}
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				m.quitOnce.Do(func() { close(m.quit) })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}

// openStatusPage opens the status page in the default browser
func (m *SystrayManager) openStatusPage() {
	slog.Info("Opening status page", "url", m.statusURL)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", m.statusURL)
	case "darwin":
		cmd = exec.Command("open", m.statusURL)
	case "linux":
		cmd = exec.Command("xdg-open", m.statusURL)
	default:
		slog.Error("Unsupported platform for opening browser", "platform", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to open status page", "error", err)
	}
}
