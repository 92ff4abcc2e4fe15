//go:build windows

package winapi

import (
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	gdi32 = windows.NewLazySystemDLL("gdi32.dll")

	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
)

const (
	srcCopy      = 0x00CC0020
	captureBlt   = 0x40000000
	biRGB        = 0
	dibRGBColors = 0
)

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

// CaptureScreen copies the w x h primary display area at the origin into an RGBA image.
func CaptureScreen(w, h int) (*image.RGBA, error) {
	screenDC, err := GetDC(0)
	if err != nil {
		return nil, err
	}
	defer ReleaseDC(0, screenDC)

	memDC, _, err := procCreateCompatibleDC.Call(uintptr(screenDC))
	if memDC == 0 {
		return nil, fmt.Errorf("CreateCompatibleDC: %w", err)
	}
	defer procDeleteDC.Call(memDC)

	bmp, _, err := procCreateCompatibleBitmap.Call(uintptr(screenDC), uintptr(w), uintptr(h))
	if bmp == 0 {
		return nil, fmt.Errorf("CreateCompatibleBitmap: %w", err)
	}
	defer procDeleteObject.Call(bmp)

	old, _, _ := procSelectObject.Call(memDC, bmp)
	defer procSelectObject.Call(memDC, old)

	r, _, err := procBitBlt.Call(memDC, 0, 0, uintptr(w), uintptr(h), uintptr(screenDC), 0, 0, srcCopy|captureBlt)
	if r == 0 {
		return nil, fmt.Errorf("BitBlt: %w", err)
	}

	hdr := bitmapInfoHeader{
		BiWidth:       int32(w),
		BiHeight:      -int32(h), // top-down rows
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: biRGB,
	}
	hdr.BiSize = uint32(unsafe.Sizeof(hdr))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r, _, err = procGetDIBits.Call(memDC, bmp, 0, uintptr(h),
		uintptr(unsafe.Pointer(&img.Pix[0])), uintptr(unsafe.Pointer(&hdr)), dibRGBColors)
	if r == 0 {
		return nil, fmt.Errorf("GetDIBits: %w", err)
	}

	// GDI hands back BGRX; swap to RGBA and force opacity.
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		img.Pix[i+3] = 0xFF
	}
	return img, nil
}
