//go:build darwin

package input

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>

static bool hasAccessibilityPermissions() {
    return AXIsProcessTrusted();
}

static CGPoint currentMousePosition() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint cursor = CGEventGetLocation(event);
    CFRelease(event);
    return cursor;
}

static void moveMouse(CGFloat x, CGFloat y) {
    CGEventRef event = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved, CGPointMake(x, y), kCGMouseButtonLeft);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}

static void postButton(CGEventType type, CGMouseButton button) {
    CGEventRef event = CGEventCreateMouseEvent(NULL, type, currentMousePosition(), button);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}

// button: 1=left, 2=middle, 3=right, 4=back, 5=forward
static void clickMouse(int button) {
    switch (button) {
        case 1:
            postButton(kCGEventLeftMouseDown, kCGMouseButtonLeft);
            postButton(kCGEventLeftMouseUp, kCGMouseButtonLeft);
            break;
        case 2:
            postButton(kCGEventOtherMouseDown, kCGMouseButtonCenter);
            postButton(kCGEventOtherMouseUp, kCGMouseButtonCenter);
            break;
        case 3:
            postButton(kCGEventRightMouseDown, kCGMouseButtonRight);
            postButton(kCGEventRightMouseUp, kCGMouseButtonRight);
            break;
        case 4:
        case 5:
            // side buttons are "other" buttons numbered from 3
            postButton(kCGEventOtherMouseDown, (CGMouseButton)(button - 1));
            postButton(kCGEventOtherMouseUp, (CGMouseButton)(button - 1));
            break;
    }
}
*/
import "C"
import (
	"fmt"
)

func checkAccessibility() error {
	if !bool(C.hasAccessibilityPermissions()) {
		return fmt.Errorf("accessibility permission not granted")
	}
	return nil
}

func platformMoveTo(x, y int) error {
	if err := checkAccessibility(); err != nil {
		return err
	}
	C.moveMouse(C.CGFloat(x), C.CGFloat(y))
	return nil
}

func platformClick(button string) error {
	if err := checkAccessibility(); err != nil {
		return err
	}
	var n C.int
	switch button {
	case "MOUSE1":
		n = 1
	case "MOUSE2":
		n = 2
	case "MOUSE3":
		n = 3
	case "MOUSE4":
		n = 4
	case "MOUSE5":
		n = 5
	}
	C.clickMouse(n)
	return nil
}
