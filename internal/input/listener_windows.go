//go:build windows

package input

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadId  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	WH_KEYBOARD_LL = 13
	WH_MOUSE_LL    = 14
	WM_QUIT        = 0x0012
	WM_KEYDOWN     = 0x0100
	WM_KEYUP       = 0x0101
	WM_SYSKEYDOWN  = 0x0104
	WM_SYSKEYUP    = 0x0105

	WM_LBUTTONDOWN = 0x0201
	WM_LBUTTONUP   = 0x0202
	WM_RBUTTONDOWN = 0x0204
	WM_RBUTTONUP   = 0x0205
	WM_MBUTTONDOWN = 0x0207
	WM_MBUTTONUP   = 0x0208
	WM_XBUTTONDOWN = 0x020B
	WM_XBUTTONUP   = 0x020C
)

type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type MSLLHOOKSTRUCT struct {
	Point       struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// Low-level hook procedures cannot carry user data, so the active listener is package state
var (
	activeMu     sync.RWMutex
	activeHook   *HookListener
	keyboardHook uintptr
	mouseHook    uintptr
)

// HookListener captures global input with low-level keyboard and mouse hooks
type HookListener struct {
	mu       sync.Mutex
	handler  Handler
	threadID uintptr
	running  bool
}

// NewListener creates the Windows global input listener
func NewListener() *HookListener {
	return &HookListener{}
}

// Start installs the hooks on a dedicated OS thread and pumps its message loop
func (l *HookListener) Start(handler Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("listener already running")
	}

	activeMu.Lock()
	if activeHook != nil {
		activeMu.Unlock()
		return fmt.Errorf("another listener is already installed")
	}
	activeHook = l
	activeMu.Unlock()

	l.handler = handler
	errCh := make(chan error, 1)

	// Hooks must be registered in the same thread that runs the message loop
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		tid, _, _ := procGetCurrentThreadId.Call()
		hMod, _, _ := procGetModuleHandle.Call(0)

		var err error
		keyboardHook, _, err = procSetWindowsHookEx.Call(
			WH_KEYBOARD_LL,
			syscall.NewCallback(keyboardHookProc),
			hMod,
			0,
		)
		if keyboardHook == 0 {
			errCh <- fmt.Errorf("failed to set keyboard hook: %v", err)
			return
		}

		mouseHook, _, err = procSetWindowsHookEx.Call(
			WH_MOUSE_LL,
			syscall.NewCallback(mouseHookProc),
			hMod,
			0,
		)
		if mouseHook == 0 {
			procUnhookWindowsHookEx.Call(keyboardHook)
			keyboardHook = 0
			errCh <- fmt.Errorf("failed to set mouse hook: %v", err)
			return
		}

		l.mu.Lock()
		l.threadID = tid
		l.mu.Unlock()

		log.Println("Input Listener: Windows global hooks started.")
		errCh <- nil

		var msg struct {
			Hwnd    syscall.Handle
			Message uint32
			Wparam  uintptr
			Lparam  uintptr
			Time    uint32
			Pt      struct{ X, Y int32 }
		}

		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
		}

		procUnhookWindowsHookEx.Call(keyboardHook)
		procUnhookWindowsHookEx.Call(mouseHook)
		keyboardHook, mouseHook = 0, 0
		log.Println("Input Listener: hook thread exiting")
	}()

	select {
	case err := <-errCh:
		if err != nil {
			activeMu.Lock()
			activeHook = nil
			activeMu.Unlock()
			return err
		}
	case <-time.After(2 * time.Second):
		return fmt.Errorf("timeout installing input hooks")
	}

	l.running = true
	return nil
}

// Stop ends the hook thread's message loop, which unhooks both hooks
func (l *HookListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	l.running = false
	procPostThreadMessage.Call(l.threadID, WM_QUIT, 0, 0)

	activeMu.Lock()
	activeHook = nil
	activeMu.Unlock()
	return nil
}

func dispatch(ev Event) {
	activeMu.RLock()
	l := activeHook
	activeMu.RUnlock()
	if l != nil && l.handler != nil {
		l.handler(ev)
	}
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
		keyName := vkCodeToName(kbd.VkCode)
		if keyName != "" {
			kind := KeyUp
			if wParam == WM_KEYDOWN || wParam == WM_SYSKEYDOWN {
				kind = KeyDown
			}
			dispatch(Event{Kind: kind, Key: keyName, Time: time.Now()})
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
	return ret
}

func mouseHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		ms := (*MSLLHOOKSTRUCT)(unsafe.Pointer(lParam))
		var btnName string
		var kind Kind

		switch wParam {
		case WM_LBUTTONDOWN:
			btnName, kind = "MOUSE1", ButtonDown
		case WM_LBUTTONUP:
			btnName, kind = "MOUSE1", ButtonUp
		case WM_RBUTTONDOWN:
			btnName, kind = "MOUSE3", ButtonDown
		case WM_RBUTTONUP:
			btnName, kind = "MOUSE3", ButtonUp
		case WM_MBUTTONDOWN:
			btnName, kind = "MOUSE2", ButtonDown
		case WM_MBUTTONUP:
			btnName, kind = "MOUSE2", ButtonUp
		case WM_XBUTTONDOWN, WM_XBUTTONUP:
			if (ms.MouseData >> 16) == 1 {
				btnName = "MOUSE4"
			} else {
				btnName = "MOUSE5"
			}
			kind = ButtonDown
			if wParam == WM_XBUTTONUP {
				kind = ButtonUp
			}
		}

		if btnName != "" {
			dispatch(Event{
				Kind: kind,
				Key:  btnName,
				X:    int(ms.Point.X),
				Y:    int(ms.Point.Y),
				Time: time.Now(),
			})
		}
	}
	ret, _, _ := procCallNextHookEx.Call(mouseHook, uintptr(nCode), wParam, lParam)
	return ret
}

func vkCodeToName(vk uint32) string {
	// Modifier keys
	switch vk {
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x5B, 0x5C:
		return "CMD" // Windows key as CMD for consistency
	case 0x20:
		return "SPACE"
	case 0x0D:
		return "ENTER"
	case 0x1B:
		return "ESC"
	case 0x08:
		return "BACKSPACE"
	case 0x09:
		return "TAB"
	case 0x25:
		return "LEFT"
	case 0x26:
		return "UP"
	case 0x27:
		return "RIGHT"
	case 0x28:
		return "DOWN"
	case 0x2E:
		return "DELETE"
	}

	// Letters A-Z and digits 0-9 share their ASCII codes
	if (vk >= 0x41 && vk <= 0x5A) || (vk >= 0x30 && vk <= 0x39) {
		return string(rune(vk))
	}

	// F1-F12
	if vk >= 0x70 && vk <= 0x7B {
		return fmt.Sprintf("F%d", vk-0x6F)
	}

	return ""
}
