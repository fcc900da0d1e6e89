package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wireless"
)

// Paths locates the host resources the checks inspect.
type Paths struct {
	DevDir      string
	NetDir      string
	SettingsDir string
}

// DefaultPaths returns the Linux device and sysfs locations.
func DefaultPaths(settingsDir string) Paths {
	return Paths{
		DevDir:      "/dev",
		NetDir:      "/sys/class/net",
		SettingsDir: settingsDir,
	}
}

// Checker validates the wireless tooling, camera and settings directory.
type Checker struct {
	paths      Paths
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(paths Paths) *Checker {
	return &Checker{
		paths:      paths,
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool(settings.Backend),
		c.checkCamera(settings.CameraIndex),
		c.checkInterface(settings.Interface),
		c.checkSettingsDir(c.paths.SettingsDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies the backend CLI is on PATH.
func (c *Checker) checkTool(backend string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "tool_" + backend,
		Name: backend,
	}

	if backend != wireless.BackendNMCLI && backend != wireless.BackendWPACLI {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown wireless backend: %q", backend)
		item.Hint = fmt.Sprintf("Set backend to %s or %s.", wireless.BackendNMCLI, wireless.BackendWPACLI)
		return item
	}

	path, err := c.lookPath(backend)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found in PATH: %s", backend)
		item.Hint = "Install it and ensure the binary is available on PATH before scanning."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkCamera verifies the capture device node exists.
func (c *Checker) checkCamera(index int) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "camera",
		Name: "Camera",
	}

	device := filepath.Join(c.paths.DevDir, fmt.Sprintf("video%d", index))
	if _, err := c.stat(device); err != nil {
		item.Status = domain.DiagnosticStatusFail
		if IsNotExist(err) {
			item.Message = fmt.Sprintf("Camera device does not exist: %s", device)
		} else {
			item.Message = fmt.Sprintf("Cannot access camera device: %s", device)
		}
		item.Hint = "Connect a camera or choose another camera index in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Camera device found: %s", device)
	return item
}

// checkInterface verifies the configured interface is wireless, or that one
// wireless interface exists when none is configured.
func (c *Checker) checkInterface(name string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "wireless_interface",
		Name: "Wireless interface",
	}

	if strings.TrimSpace(name) != "" {
		if _, err := c.stat(filepath.Join(c.paths.NetDir, name, "wireless")); err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Not a wireless interface: %s", name)
			item.Hint = "Check the interface name or leave it empty to use the first wireless device."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Wireless interface: %s", name)
		return item
	}

	entries, err := c.readDir(c.paths.NetDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot list network interfaces: %s", c.paths.NetDir)
		item.Hint = "Diagnostics need sysfs to find wireless devices."
		return item
	}

	for _, entry := range entries {
		if _, err := c.stat(filepath.Join(c.paths.NetDir, entry.Name(), "wireless")); err == nil {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Wireless interface: %s", entry.Name())
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = wireless.ErrNoInterface.Error()
	item.Hint = "Enable the wireless adapter or install its driver."
	return item
}

// checkSettingsDir validates settings directory existence and write access.
func (c *Checker) checkSettingsDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "settings_dir",
		Name: "Settings directory",
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Settings directory is empty."
		item.Hint = "Run with a home directory or pass --config."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create settings directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Settings directory is not writable: %s", dir)
		item.Hint = "Settings changes will not be saved."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	paths Paths,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		paths:      paths,
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
