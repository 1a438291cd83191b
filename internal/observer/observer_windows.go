//go:build windows

package observer

import (
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	"github.com/rzayevsahil/Monity/internal/tracker"
	"golang.org/x/sys/windows"
)

const maxWindowTitleLength = 256

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadPID  = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetLastInputInfo    = user32.NewProc("GetLastInputInfo")

	kernel32           = windows.NewLazySystemDLL("kernel32.dll")
	procGetTickCount64 = kernel32.NewProc("GetTickCount64")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// windowsObserver resolves the foreground window and idle time via user32.
type windowsObserver struct{}

// New returns the platform observer.
func New() tracker.Observer {
	return &windowsObserver{}
}

func (o *windowsObserver) Sample() *tracker.Sample {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil
	}

	var pid uint32
	procGetWindowThreadPID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return nil
	}

	exePath := processImagePath(pid)
	if exePath == "" {
		return nil
	}

	name := strings.TrimSuffix(filepath.Base(exePath), filepath.Ext(exePath))

	return &tracker.Sample{
		ProcessID:   int(pid),
		ProcessName: name,
		ExePath:     exePath,
		WindowTitle: windowTitle(hwnd),
	}
}

func (o *windowsObserver) Idle() time.Duration {
	lii := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	ret, _, _ := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&lii)))
	if ret == 0 {
		return 0
	}

	// GetTickCount64 avoids the 49-day wraparound of the 32-bit counter.
	ticks, _, _ := procGetTickCount64.Call()
	idleMs := uint64(ticks) - uint64(lii.dwTime)
	return time.Duration(idleMs) * time.Millisecond
}

func processImagePath(pid uint32) string {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer func() { _ = windows.CloseHandle(handle) }()

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}

func windowTitle(hwnd uintptr) string {
	buf := make([]uint16, maxWindowTitleLength)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}
