//go:build darwin

package input

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

CGEventRef golemEventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFRunLoopRef golemTapLoop = NULL;

// Returns 0 when the tap could not be created (accessibility permission missing)
static inline int startEventTap(uintptr_t refcon) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) | CGEventMaskBit(kCGEventKeyUp) |
        CGEventMaskBit(kCGEventFlagsChanged) |
        CGEventMaskBit(kCGEventLeftMouseDown) | CGEventMaskBit(kCGEventLeftMouseUp) |
        CGEventMaskBit(kCGEventRightMouseDown) | CGEventMaskBit(kCGEventRightMouseUp) |
        CGEventMaskBit(kCGEventOtherMouseDown) | CGEventMaskBit(kCGEventOtherMouseUp);
    CFMachPortRef tap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        golemEventCallback,
        (void*)refcon
    );
    if (!tap) {
        return 0;
    }

    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    golemTapLoop = CFRunLoopGetCurrent();
    CFRunLoopAddSource(golemTapLoop, source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    CFRunLoopRun();

    CFRunLoopRemoveSource(golemTapLoop, source, kCFRunLoopCommonModes);
    CFRelease(source);
    CFRelease(tap);
    golemTapLoop = NULL;
    return 1;
}

static inline void stopEventTap() {
    if (golemTapLoop != NULL) {
        CFRunLoopStop(golemTapLoop);
    }
}
*/
import "C"
import (
	"fmt"
	"log"
	"runtime"
	"runtime/cgo"
	"strconv"
	"sync"
	"time"
	"unsafe"
)

// TapListener captures global input with a listen-only CGEventTap
type TapListener struct {
	mu      sync.Mutex
	handler Handler
	handle  cgo.Handle
	running bool
}

// NewListener creates the macOS global input listener
func NewListener() *TapListener {
	return &TapListener{}
}

//export golemEventCallback
func golemEventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	h := cgo.Handle(uintptr(refcon))
	l := h.Value().(*TapListener)

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		keyName := macKeyCodeToName(keyCode)
		if keyName != "" {
			kind := KeyUp
			if eventType == C.kCGEventKeyDown {
				kind = KeyDown
			}
			l.emit(Event{Kind: kind, Key: keyName, Time: time.Now()})
		}

	case C.kCGEventFlagsChanged:
		flags := C.CGEventGetFlags(event)
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))

		var name string
		var down bool
		switch keyCode {
		case 55, 54:
			name, down = "CMD", (flags&C.kCGEventFlagMaskCommand) != 0
		case 56, 60:
			name, down = "SHIFT", (flags&C.kCGEventFlagMaskShift) != 0
		case 58, 61:
			name, down = "ALT", (flags&C.kCGEventFlagMaskAlternate) != 0
		case 59, 62:
			name, down = "CTRL", (flags&C.kCGEventFlagMaskControl) != 0
		}
		if name != "" {
			kind := KeyUp
			if down {
				kind = KeyDown
			}
			l.emit(Event{Kind: kind, Key: name, Time: time.Now()})
		}

	case C.kCGEventLeftMouseDown, C.kCGEventLeftMouseUp,
		C.kCGEventRightMouseDown, C.kCGEventRightMouseUp,
		C.kCGEventOtherMouseDown, C.kCGEventOtherMouseUp:

		kind := ButtonUp
		if eventType == C.kCGEventLeftMouseDown ||
			eventType == C.kCGEventRightMouseDown ||
			eventType == C.kCGEventOtherMouseDown {
			kind = ButtonDown
		}

		var btnName string
		switch btnNumber := int64(C.CGEventGetIntegerValueField(event, C.kCGMouseEventButtonNumber)); btnNumber {
		case 0:
			btnName = "MOUSE1"
		case 1:
			btnName = "MOUSE3" // Right
		case 2:
			btnName = "MOUSE2" // Middle
		default:
			btnName = "MOUSE" + strconv.FormatInt(btnNumber+1, 10)
		}

		loc := C.CGEventGetLocation(event)
		l.emit(Event{Kind: kind, Key: btnName, X: int(loc.x), Y: int(loc.y), Time: time.Now()})
	}

	return event
}

func (l *TapListener) emit(ev Event) {
	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

// Start creates the event tap on a locked OS thread and runs its run loop
func (l *TapListener) Start(handler Handler) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("listener already running")
	}
	l.handler = handler
	l.handle = cgo.NewHandle(l)
	l.running = true
	l.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		log.Println("Input Listener: macOS CGEventTap starting.")
		if C.startEventTap(C.uintptr_t(l.handle)) == 0 {
			errCh <- fmt.Errorf("failed to create CGEventTap: accessibility permission missing?")
			return
		}
		log.Println("Input Listener: CGEventTap run loop exited")
	}()

	// CFRunLoopRun does not return on success, so a short wait is enough to catch creation failures
	select {
	case err := <-errCh:
		l.mu.Lock()
		l.running = false
		l.handle.Delete()
		l.mu.Unlock()
		return err
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

// Stop stops the tap's run loop
func (l *TapListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return nil
	}
	l.running = false
	C.stopEventTap()
	return nil
}

func macKeyCodeToName(code uint16) string {
	if name, ok := macKeyNames[code]; ok {
		return name
	}
	return ""
}

var macKeyNames = map[uint16]string{
	55: "CMD", 54: "CMD", 56: "SHIFT", 60: "SHIFT", 58: "ALT", 61: "ALT", 59: "CTRL", 62: "CTRL",
	49: "SPACE", 36: "ENTER", 53: "ESC", 48: "TAB", 51: "BACKSPACE",

	0: "A", 11: "B", 8: "C", 2: "D", 14: "E", 3: "F", 5: "G", 4: "H", 34: "I",
	38: "J", 40: "K", 37: "L", 46: "M", 45: "N", 31: "O", 35: "P", 12: "Q",
	15: "R", 1: "S", 17: "T", 32: "U", 9: "V", 13: "W", 7: "X", 16: "Y", 6: "Z",

	29: "0", 18: "1", 19: "2", 20: "3", 21: "4", 23: "5", 22: "6", 26: "7", 28: "8", 25: "9",

	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",
}
