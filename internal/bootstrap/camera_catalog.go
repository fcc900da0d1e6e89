package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wifi-qr-scanner/internal/domain"
)

const (
	defaultDevDir       = "/dev"
	defaultV4L2ClassDir = "/sys/class/video4linux"
)

// ListCameras returns the video capture devices on this host, marking the
// configured one.
func (a *App) ListCameras() []domain.CameraOption {
	selected := -1
	if settings, err := a.Store.Load(); err == nil {
		selected = settings.CameraIndex
	}
	return listCameras(defaultDevDir, defaultV4L2ClassDir, selected)
}

// SelectCamera stores the camera index used by the next StartScanner.
func (a *App) SelectCamera(index int) (domain.Settings, error) {
	if index < 0 {
		return domain.Settings{}, fmt.Errorf("camera index must be non-negative")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings.CameraIndex = index
	return a.SaveSettings(settings)
}

// listCameras scans devDir for videoN nodes and reads their names from the
// V4L2 class directory.
func listCameras(devDir, classDir string, selected int) []domain.CameraOption {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil
	}

	cameras := make([]domain.CameraOption, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
		if err != nil || index < 0 {
			continue
		}

		cameras = append(cameras, domain.CameraOption{
			Index:    index,
			Device:   filepath.Join(devDir, name),
			Name:     cameraName(classDir, name),
			Selected: index == selected,
		})
	}

	sort.Slice(cameras, func(i, j int) bool {
		return cameras[i].Index < cameras[j].Index
	})
	return cameras
}

func cameraName(classDir, node string) string {
	data, err := os.ReadFile(filepath.Join(classDir, node, "name"))
	if err != nil {
		return node
	}
	if name := strings.TrimSpace(string(data)); name != "" {
		return name
	}
	return node
}
