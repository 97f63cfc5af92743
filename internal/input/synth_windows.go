//go:build windows

package input

import (
	"fmt"
)

var (
	procSetCursorPos = user32.NewProc("SetCursorPos")
	procMouseEvent   = user32.NewProc("mouse_event")
)

const (
	MOUSEEVENTF_LEFTDOWN   = 0x0002
	MOUSEEVENTF_LEFTUP     = 0x0004
	MOUSEEVENTF_RIGHTDOWN  = 0x0008
	MOUSEEVENTF_RIGHTUP    = 0x0010
	MOUSEEVENTF_MIDDLEDOWN = 0x0020
	MOUSEEVENTF_MIDDLEUP   = 0x0040
	MOUSEEVENTF_XDOWN      = 0x0080
	MOUSEEVENTF_XUP        = 0x0100

	XBUTTON1 = 0x0001
	XBUTTON2 = 0x0002
)

func platformMoveTo(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y)))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos failed: %v", err)
	}
	return nil
}

func platformClick(button string) error {
	var down, up, data uintptr
	switch button {
	case "MOUSE1":
		down, up = MOUSEEVENTF_LEFTDOWN, MOUSEEVENTF_LEFTUP
	case "MOUSE2":
		down, up = MOUSEEVENTF_MIDDLEDOWN, MOUSEEVENTF_MIDDLEUP
	case "MOUSE3":
		down, up = MOUSEEVENTF_RIGHTDOWN, MOUSEEVENTF_RIGHTUP
	case "MOUSE4":
		down, up, data = MOUSEEVENTF_XDOWN, MOUSEEVENTF_XUP, XBUTTON1
	case "MOUSE5":
		down, up, data = MOUSEEVENTF_XDOWN, MOUSEEVENTF_XUP, XBUTTON2
	}
	procMouseEvent.Call(down, 0, 0, data, 0)
	procMouseEvent.Call(up, 0, 0, data, 0)
	return nil
}
